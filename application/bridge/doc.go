// Package bridge implements the bridge function table: the bind-time table
// pairing host entry points with native exports.
//
// A call marshals its arguments (registering callback arguments first, then
// encoding scalars as ABI words and aggregates as payloads in native memory),
// invokes the native export, and decodes the native result. Failures signalled
// by the native side (a trap, the null-payload sentinel, or an undecodable
// result) are returned as *errors.NativeCallError.
//
// Calls are synchronous. The table imposes no cancellation or timeout: a hung
// native call blocks the calling goroutine.
//
// A native module has one linear memory, allocator and stack, so host-initiated
// calls into the same module must not run concurrently. The table does not
// serialize them: a callback dispatched from native code may call back into the
// table on the same goroutine, and a lock would deadlock that re-entry.
// Callers that share a table across goroutines serialize calls themselves.
package bridge
