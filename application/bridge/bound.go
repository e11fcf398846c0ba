package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/reglet-dev/ffibridge/application/codec"
	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/internal/abi"
)

// Bound is one function of a Table.
type Bound struct {
	table *Table
	fn    entities.Function
}

// Function returns the bound descriptor.
func (b *Bound) Function() entities.Function {
	return b.fn
}

// Call invokes the native export with args and stores the decoded result in
// result, which must be a non-nil pointer unless the function returns void or
// the caller discards the result by passing nil.
//
// Callback arguments are registered before the call and stay registered
// afterwards, except one-shot parameters which are released after their first
// invocation. Passing an entities.Handle for a callback parameter reuses an
// existing registration. If marshalling fails, registrations created by this
// call are released and no native code runs.
func (b *Bound) Call(ctx context.Context, result any, args ...any) (err error) {
	start := time.Now()
	defer func() {
		b.table.metrics.ObserveNativeCall(b.fn.Name, time.Since(start), err)
	}()

	if len(args) != len(b.fn.Params) {
		return fmt.Errorf("function %s expects %d arguments, got %d", b.fn.Name, len(b.fn.Params), len(args))
	}

	m := &marshaller{bound: b}
	defer m.freePayloads(ctx)

	words, err := m.marshalArgs(ctx, args)
	if err != nil {
		m.releaseCreated()
		return err
	}

	results, err := b.table.native.Call(ctx, b.fn.Entry, words...)
	if err != nil {
		return b.nativeError(ctx, err, "")
	}

	if err := b.unmarshalResult(ctx, results, result); err != nil {
		return err
	}

	b.table.logger.DebugContext(ctx, "native call completed",
		"function", b.fn.Name,
		"entry", b.fn.Entry,
		"duration", time.Since(start))
	return nil
}

func (b *Bound) unmarshalResult(ctx context.Context, results []uint64, result any) error {
	schema := b.fn.Result
	if schema.Kind == entities.KindVoid {
		return nil
	}
	if len(results) == 0 {
		return b.nativeError(ctx, nil, "native export returned no result")
	}
	word := results[0]

	switch {
	case schema.Kind.IsScalar():
		if result == nil {
			return nil
		}
		if err := codec.DecodeScalar(word, schema, result); err != nil {
			return b.nativeError(ctx, err, "")
		}
		return nil

	case schema.Kind == entities.KindCallback:
		return b.resolveCallback(entities.Handle(word), result)
	}

	if word == abi.Null {
		return b.nativeError(ctx, nil, "native export returned a null payload")
	}
	data, err := b.table.native.ReadPayload(ctx, word)
	// Result payloads are allocated by the native side and owned by the host
	// once returned.
	b.table.native.FreePayload(ctx, word)
	if err != nil {
		return b.nativeError(ctx, err, "")
	}
	if result == nil {
		return nil
	}
	if err := b.table.codec.Decode(data, schema, result); err != nil {
		return &domainerrors.NativeCallError{Function: b.fn.Name, Entry: b.fn.Entry, Err: err}
	}
	return nil
}

func (b *Bound) resolveCallback(h entities.Handle, result any) error {
	reg, err := b.table.registry.Lookup(h)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if hp, ok := result.(*entities.Handle); ok {
		*hp = h
		return nil
	}
	return codec.AssignCallback(reg.Callback, result)
}

// nativeError builds a NativeCallError, preferring the native side's own
// diagnostic text over fallback.
func (b *Bound) nativeError(ctx context.Context, cause error, fallback string) error {
	diag := b.table.native.LastError(ctx)
	if diag == "" {
		diag = fallback
	}
	err := &domainerrors.NativeCallError{
		Function:   b.fn.Name,
		Entry:      b.fn.Entry,
		Diagnostic: diag,
		Err:        cause,
	}
	b.table.logger.WarnContext(ctx, "native call failed",
		"function", b.fn.Name,
		"entry", b.fn.Entry,
		"error", err)
	return err
}
