//go:build wasip1

package log

import (
	"context"
	"runtime"
	"unsafe"

	"github.com/reglet-dev/ffibridge/internal/abi"
)

//go:wasmimport bridge_host log_message
//nolint:revive // intentional snake_case to match WASM import convention
func host_log_message(messagePacked uint64)

// hostSink passes the record to the host's log_message export. The payload
// stays owned by the guest; the host only reads it during the call.
func hostSink(_ context.Context, payload []byte) {
	if len(payload) == 0 {
		return
	}
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(payload)))) //nolint:gosec // G115: wasm32 addresses
	host_log_message(abi.PackPtrLen(ptr, uint32(len(payload))))       //nolint:gosec // G115: bounded by memory
	runtime.KeepAlive(payload)
}
