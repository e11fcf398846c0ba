// Package hostfuncs implements the invocation dispatcher: the re-entry point
// the native module calls to invoke a host callback by handle and selector.
//
// The dispatcher has NO WASM runtime dependencies. A runtime adapter (see
// infrastructure/wazero) reads the argument payload out of native memory,
// calls Dispatcher.Dispatch, and writes the returned payload back.
//
// Dispatch never fails the native caller: every failure, including a panic in
// host code, is reported as a failure envelope. The dispatcher imposes no
// timeout; a callback that never returns blocks the native thread that
// invoked it.
package hostfuncs
