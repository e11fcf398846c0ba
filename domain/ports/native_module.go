package ports

import "context"

// NativeModule is the loaded native side of the bridge, treated as a black box
// exposing extern entry points and a payload memory.
//
// Calls block until the native entry returns. No cancellation or timeout is
// applied by the bridge: a hung native call hangs the calling goroutine.
type NativeModule interface {
	// Call invokes a native export with raw ABI words and returns its result words.
	Call(ctx context.Context, entry string, args ...uint64) ([]uint64, error)

	// WritePayload copies data into native memory and returns a packed reference.
	WritePayload(ctx context.Context, data []byte) (uint64, error)

	// ReadPayload copies the payload referenced by a packed reference out of native memory.
	ReadPayload(ctx context.Context, ref uint64) ([]byte, error)

	// FreePayload returns a payload to the native allocator. The host frees both
	// the payloads it wrote and the result payloads native returned to it.
	FreePayload(ctx context.Context, ref uint64)

	// LastError returns the native side's diagnostic text for the most recent
	// failure, or "" when none is available.
	LastError(ctx context.Context) string
}
