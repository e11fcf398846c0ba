package bridge

import (
	"context"
	"fmt"

	"github.com/reglet-dev/ffibridge/application/codec"
	"github.com/reglet-dev/ffibridge/domain/entities"
)

// marshaller tracks the resources one call creates so they can be undone.
type marshaller struct {
	bound    *Bound
	created  []entities.Handle
	payloads []uint64
}

func (m *marshaller) marshalArgs(ctx context.Context, args []any) ([]uint64, error) {
	fn := m.bound.fn
	words := make([]uint64, len(args))
	for i, p := range fn.Params {
		word, err := m.marshalArg(ctx, p, args[i])
		if err != nil {
			return nil, fmt.Errorf("function %s argument %s: %w", fn.Name, p.Name, err)
		}
		words[i] = word
	}
	return words, nil
}

func (m *marshaller) marshalArg(ctx context.Context, p entities.Param, arg any) (uint64, error) {
	t := m.bound.table
	switch {
	case p.Schema.Kind == entities.KindCallback:
		return m.registerCallback(p, arg)

	case p.Schema.Kind.IsScalar():
		return codec.EncodeScalar(arg, p.Schema)
	}

	payload, err := t.codec.Encode(arg, p.Schema)
	if err != nil {
		return 0, err
	}
	ref, err := t.native.WritePayload(ctx, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to write payload: %w", err)
	}
	m.payloads = append(m.payloads, ref)
	return ref, nil
}

func (m *marshaller) registerCallback(p entities.Param, arg any) (uint64, error) {
	if h, ok := arg.(entities.Handle); ok {
		if _, err := m.bound.table.registry.Lookup(h); err != nil {
			return 0, err
		}
		return uint64(h), nil
	}
	if arg == nil {
		return 0, fmt.Errorf("callback cannot be nil")
	}

	registry := m.bound.table.registry
	register := registry.Register
	if p.OneShot {
		register = registry.RegisterOneShot
	}
	h, err := register(arg, p.Schema.Interface)
	if err != nil {
		return 0, err
	}
	m.created = append(m.created, h)
	return uint64(h), nil
}

// releaseCreated undoes the registrations of a call that never reached native.
func (m *marshaller) releaseCreated() {
	for _, h := range m.created {
		m.bound.table.registry.Release(h)
	}
	m.created = nil
}

func (m *marshaller) freePayloads(ctx context.Context) {
	for _, ref := range m.payloads {
		m.bound.table.native.FreePayload(ctx, ref)
	}
}
