package wazero

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero/api"
)

// fakeMemory is a flat guest memory. Unimplemented api.Memory methods panic.
type fakeMemory struct {
	api.Memory
	buf []byte
}

func (m *fakeMemory) Read(offset, count uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(count)
	if end > uint64(len(m.buf)) {
		return nil, false
	}
	return m.buf[offset:end], true
}

func (m *fakeMemory) Write(offset uint32, v []byte) bool {
	end := uint64(offset) + uint64(len(v))
	if end > uint64(len(m.buf)) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

type fakeFunction struct {
	api.Function
	call func(ctx context.Context, params ...uint64) ([]uint64, error)
}

func (f *fakeFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.call(ctx, params...)
}

// fakeGuest is a guest module with a bump allocator and recorded frees.
type fakeGuest struct {
	api.Module
	mem     *fakeMemory
	funcs   map[string]*fakeFunction
	next    uint32
	frees   [][2]uint64
	lastErr string
	closed  bool
}

func newFakeGuest(size int) *fakeGuest {
	g := &fakeGuest{mem: &fakeMemory{buf: make([]byte, size)}, next: 8, funcs: map[string]*fakeFunction{}}
	g.funcs[ExportAllocate] = &fakeFunction{call: func(_ context.Context, p ...uint64) ([]uint64, error) {
		n := uint32(p[0])
		if uint64(g.next)+uint64(n) > uint64(len(g.mem.buf)) {
			return []uint64{0}, nil
		}
		ptr := g.next
		g.next += n
		return []uint64{uint64(ptr)}, nil
	}}
	g.funcs[ExportDeallocate] = &fakeFunction{call: func(_ context.Context, p ...uint64) ([]uint64, error) {
		g.frees = append(g.frees, [2]uint64{p[0], p[1]})
		return nil, nil
	}}
	return g
}

func (g *fakeGuest) Name() string { return "guest" }

func (g *fakeGuest) Memory() api.Memory { return g.mem }

func (g *fakeGuest) ExportedFunction(name string) api.Function {
	if f, ok := g.funcs[name]; ok {
		return f
	}
	return nil
}

func (g *fakeGuest) ExportedFunctionDefinitions() map[string]api.FunctionDefinition {
	defs := make(map[string]api.FunctionDefinition, len(g.funcs))
	for name := range g.funcs {
		defs[name] = nil
	}
	return defs
}

func (g *fakeGuest) Close(context.Context) error {
	g.closed = true
	return nil
}

// put writes data at a fresh address and returns its packed reference.
func (g *fakeGuest) put(data []byte) uint64 {
	ptr := g.next
	copy(g.mem.buf[ptr:], data)
	g.next += uint32(len(data))
	return uint64(ptr)<<32 | uint64(len(data))
}

func (g *fakeGuest) get(ref uint64) []byte {
	data, ok := g.mem.Read(uint32(ref>>32), uint32(ref))
	if !ok {
		return nil
	}
	return data
}

func (g *fakeGuest) withLastError(msg string) {
	g.lastErr = msg
	g.funcs[ExportLastError] = &fakeFunction{call: func(context.Context, ...uint64) ([]uint64, error) {
		if g.lastErr == "" {
			return []uint64{0}, nil
		}
		return []uint64{g.put([]byte(g.lastErr))}, nil
	}}
}

func (g *fakeGuest) withExport(name string, fn func(ctx context.Context, p ...uint64) ([]uint64, error)) {
	g.funcs[name] = &fakeFunction{call: fn}
}

var errTrap = errors.New("wasm error: unreachable")
