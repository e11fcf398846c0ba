// Package host runs the native side of the bridge.
//
// An Executor owns a wazero runtime with WASI and the bridge host module
// ("bridge_host") instantiated, and loads exactly one native module. Once
// loaded, the Executor is the ports.NativeModule that bridge function tables
// call into.
//
// Calls in both directions are synchronous. The bridge imposes no
// cancellation or timeout: a native call that never returns blocks the
// calling goroutine, and a host callback that never returns blocks the
// native caller. Contexts carry values and logging attributes only.
//
// The loaded module's memory and stack are shared by every call, so
// host-initiated calls (Executor.Call, or a bridge.Table built on it) must not
// run concurrently. Re-entrant calls made by a callback during a dispatch are
// fine; they run on the goroutine that issued the outer call.
//
// Open assembles the whole bridge from a config file: metrics, callback
// registry, codec, dispatcher, executor, and the function table bound from
// the binding manifest.
package host
