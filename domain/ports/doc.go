// Package ports defines the interfaces between the bridge core and its
// adapters: the native module, the wire format, the callback registry and
// the manifest parser. Infrastructure adapters implement these interfaces.
package ports
