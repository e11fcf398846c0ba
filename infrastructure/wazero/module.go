package wazero

import (
	"context"
	"fmt"

	"github.com/reglet-dev/ffibridge/internal/abi"
	"github.com/tetratelabs/wazero/api"
)

// Guest exports used for payload memory management and diagnostics.
const (
	ExportAllocate   = "allocate"
	ExportDeallocate = "deallocate"
	ExportLastError  = "bridge_last_error"
)

// DefaultMaxPayloadSize bounds payloads read from guest memory (16MB).
// This keeps a faulty module from making the host copy arbitrary amounts of memory.
const DefaultMaxPayloadSize = 16 * 1024 * 1024

// Module adapts an instantiated wazero module to ports.NativeModule.
// Payloads live in the guest's linear memory and are allocated through its
// allocate export.
type Module struct {
	mod            api.Module
	maxPayloadSize uint32
}

// NewModule wraps mod. A zero maxPayloadSize selects DefaultMaxPayloadSize.
func NewModule(mod api.Module, maxPayloadSize uint32) *Module {
	if maxPayloadSize == 0 {
		maxPayloadSize = DefaultMaxPayloadSize
	}
	return &Module{mod: mod, maxPayloadSize: maxPayloadSize}
}

// Name returns the guest module name.
func (m *Module) Name() string {
	return m.mod.Name()
}

// Exports lists the names of the guest's exported functions.
func (m *Module) Exports() []string {
	defs := m.mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names
}

// Call invokes a guest export. A trap is returned as the error.
func (m *Module) Call(ctx context.Context, entry string, args ...uint64) ([]uint64, error) {
	fn := m.mod.ExportedFunction(entry)
	if fn == nil {
		return nil, fmt.Errorf("export %q not found", entry)
	}
	return fn.Call(ctx, args...)
}

// WritePayload allocates guest memory for data and copies it in.
func (m *Module) WritePayload(ctx context.Context, data []byte) (uint64, error) {
	if len(data) == 0 {
		return abi.Null, nil
	}
	if uint64(len(data)) > uint64(m.maxPayloadSize) {
		return 0, fmt.Errorf("payload size %d exceeds maximum %d bytes", len(data), m.maxPayloadSize)
	}

	allocate := m.mod.ExportedFunction(ExportAllocate)
	if allocate == nil {
		return 0, fmt.Errorf("guest module missing %q export", ExportAllocate)
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to call guest allocate: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("guest allocate returned no results")
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 {
		return 0, fmt.Errorf("guest allocate failed for %d bytes", len(data))
	}

	if !m.mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("failed to write %d bytes at 0x%x to guest memory", len(data), ptr)
	}
	return abi.PackPtrLen(ptr, uint32(len(data))), nil //nolint:gosec // G115: bounded by maxPayloadSize
}

// ReadPayload copies the referenced payload out of guest memory.
func (m *Module) ReadPayload(_ context.Context, ref uint64) ([]byte, error) {
	if err := abi.Validate(ref); err != nil {
		return nil, err
	}
	ptr, length := abi.UnpackPtrLen(ref)
	if length == 0 {
		return nil, nil
	}
	if length > m.maxPayloadSize {
		return nil, fmt.Errorf("payload size %d exceeds maximum %d bytes", length, m.maxPayloadSize)
	}

	data, ok := m.mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("payload 0x%x+%d is outside guest memory", ptr, length)
	}
	// Read returns a view of guest memory, which the next allocation may move.
	out := make([]byte, length)
	copy(out, data)
	return out, nil
}

// FreePayload returns a payload to the guest through its deallocate export.
// Guests without the export leak by choice; nothing is done.
func (m *Module) FreePayload(ctx context.Context, ref uint64) {
	ptr, length := abi.UnpackPtrLen(ref)
	if ptr == 0 {
		return
	}
	dealloc := m.mod.ExportedFunction(ExportDeallocate)
	if dealloc == nil {
		return
	}
	_, _ = dealloc.Call(ctx, uint64(ptr), uint64(length))
}

// LastError returns the guest's diagnostic for its most recent failure. The
// bridge_last_error export is optional; it returns a packed reference to a
// UTF-8 message, or 0 when there is none.
func (m *Module) LastError(ctx context.Context) string {
	fn := m.mod.ExportedFunction(ExportLastError)
	if fn == nil {
		return ""
	}
	results, err := fn.Call(ctx)
	if err != nil || len(results) == 0 || results[0] == abi.Null {
		return ""
	}
	data, err := m.ReadPayload(ctx, results[0])
	if err != nil {
		return ""
	}
	m.FreePayload(ctx, results[0])
	return string(data)
}

// Close closes the guest module.
func (m *Module) Close(ctx context.Context) error {
	return m.mod.Close(ctx)
}
