package hostfuncs

import (
	"fmt"

	"github.com/reglet-dev/ffibridge/application/codec"
	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/domain/ports"
)

// Handler processes one dispatch. It receives the raw argument tuple and
// returns the encoded result payload, empty for a void method.
type Handler func(ctx DispatchContext, args []byte) ([]byte, error)

// invoke resolves the handle and selector, decodes the argument tuple against
// the method's parameters, invokes the method through the registry and
// encodes its result.
func (d *Dispatcher) invoke(ctx DispatchContext, payload []byte) ([]byte, error) {
	reg, err := d.registry.Lookup(ctx.Handle())
	if err != nil {
		return nil, err
	}
	method, ok := reg.Interface.Method(ctx.Selector())
	if !ok {
		return nil, &domainerrors.UnknownSelectorError{Interface: reg.Interface.Name, Selector: ctx.Selector()}
	}
	if dc, ok := ctx.(*dispatchContext); ok {
		dc.resolved(reg.Interface, method)
	}

	args, err := newTupleArgs(d.codec, d.registry, method.Params, payload)
	if err != nil {
		return nil, err
	}
	result, err := d.registry.Invoke(ctx, ctx.Handle(), ctx.Selector(), args)
	if err != nil {
		return nil, err
	}
	if method.Result.Kind == entities.KindVoid {
		return nil, nil
	}

	data, err := d.encodeValue(ctx, method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s.%s result: %w", reg.Interface.Name, method.Name, err)
	}
	return data, nil
}

// tupleArgs implements entities.Args over a decoded wire tuple.
type tupleArgs struct {
	codec    *codec.Codec
	registry ports.CallbackRegistry
	params   []entities.Param
	items    []any
}

func newTupleArgs(c *codec.Codec, registry ports.CallbackRegistry, params []entities.Param, payload []byte) (*tupleArgs, error) {
	items, err := c.DecodeTuple(payload, params)
	if err != nil {
		return nil, err
	}
	args := &tupleArgs{codec: c, registry: registry, params: params, items: items}

	// Reject malformed arguments before the method runs.
	for i, p := range params {
		var probe any
		if err := c.FromTupleElem(items, i, p.Schema, &probe); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func (a *tupleArgs) Len() int {
	return len(a.items)
}

// Decode stores argument i into dst. Callback arguments resolve to the
// registered host object, or to the raw handle when dst is *entities.Handle.
func (a *tupleArgs) Decode(i int, dst any) error {
	if i < 0 || i >= len(a.params) {
		return fmt.Errorf("argument index %d out of range [0,%d)", i, len(a.params))
	}
	p := a.params[i]
	if p.Schema.Kind != entities.KindCallback {
		return a.codec.FromTupleElem(a.items, i, p.Schema, dst)
	}

	var h entities.Handle
	if err := a.codec.FromTupleElem(a.items, i, p.Schema, &h); err != nil {
		return err
	}
	if hp, ok := dst.(*entities.Handle); ok {
		*hp = h
		return nil
	}

	reg, err := a.registry.Lookup(h)
	if err != nil {
		return err
	}
	return codec.AssignCallback(reg.Callback, dst)
}
