package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/reglet-dev/ffibridge/domain/ports"
	"github.com/reglet-dev/ffibridge/internal/abi"
)

// Export is an in-process stand-in for a native export.
type Export func(ctx context.Context, n *FakeNative, args []uint64) ([]uint64, error)

// FakeNative is an in-process ports.NativeModule. Payload memory is a map of
// pointer to bytes, so leaks and double frees are observable.
type FakeNative struct {
	mu        sync.Mutex
	exports   map[string]Export
	memory    map[uint32][]byte
	calls     []string
	lastError string
	nextPtr   uint32
	frees     int
}

var _ ports.NativeModule = (*FakeNative)(nil)

// NewFakeNative creates an empty fake module.
func NewFakeNative() *FakeNative {
	return &FakeNative{
		exports: make(map[string]Export),
		memory:  make(map[uint32][]byte),
		nextPtr: 16,
	}
}

// Export installs fn under name.
func (f *FakeNative) Export(name string, fn Export) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports[name] = fn
}

// Call implements ports.NativeModule.
func (f *FakeNative) Call(ctx context.Context, entry string, args ...uint64) ([]uint64, error) {
	f.mu.Lock()
	fn, ok := f.exports[entry]
	f.calls = append(f.calls, entry)
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("export %q not found", entry)
	}
	return fn(ctx, f, args)
}

// WritePayload implements ports.NativeModule.
func (f *FakeNative) WritePayload(_ context.Context, data []byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ptr := f.nextPtr
	f.nextPtr += uint32(len(data)) + 8 //nolint:gosec // test memory
	f.memory[ptr] = append([]byte(nil), data...)
	return abi.PackPtrLen(ptr, uint32(len(data))), nil //nolint:gosec // test memory
}

// ReadPayload implements ports.NativeModule.
func (f *FakeNative) ReadPayload(_ context.Context, ref uint64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ptr, length := abi.UnpackPtrLen(ref)
	data, ok := f.memory[ptr]
	if !ok {
		return nil, fmt.Errorf("read of unallocated payload at 0x%x", ptr)
	}
	if int(length) != len(data) {
		return nil, fmt.Errorf("payload at 0x%x has %d bytes, reference claims %d", ptr, len(data), length)
	}
	return append([]byte(nil), data...), nil
}

// FreePayload implements ports.NativeModule.
func (f *FakeNative) FreePayload(_ context.Context, ref uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ptr, _ := abi.UnpackPtrLen(ref)
	if _, ok := f.memory[ptr]; ok {
		delete(f.memory, ptr)
		f.frees++
	}
}

// LastError implements ports.NativeModule.
func (f *FakeNative) LastError(context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastError
}

// SetLastError sets the diagnostic text reported by LastError.
func (f *FakeNative) SetLastError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastError = msg
}

// Live returns the number of payloads allocated and not yet freed.
func (f *FakeNative) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.memory)
}

// Frees returns the number of payloads freed.
func (f *FakeNative) Frees() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frees
}

// Calls returns the exports called so far, in order.
func (f *FakeNative) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Exports returns the sorted export names.
func (f *FakeNative) Exports() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.exports))
	for name := range f.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
