// Package entities defines the bind-time descriptors and wire envelopes of the
// bridge: schemas, function and callback signatures, handles, and the
// structured error detail sent across the boundary.
package entities
