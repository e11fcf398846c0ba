// Package ffibridge connects generated bindings to a native WebAssembly
// module. The host side marshals Go values across the boundary with a
// schema-driven codec, and native code calls back into host objects through
// opaque handles.
//
// Most programs need only Open:
//
//	b, err := ffibridge.Open(ctx, "bridge.yaml", invokers)
//	if err != nil {
//	    return err
//	}
//	defer b.Close(ctx)
//
//	sum, err := bridge.Call[int32](ctx, b.Table, "add", int32(1), int32(2))
//
// The aliases below re-export the descriptor types used by generated bindings.
package ffibridge

import (
	"context"

	"github.com/reglet-dev/ffibridge/application/config"
	"github.com/reglet-dev/ffibridge/application/schema"
	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/host"
)

// Version of the bridge.
const Version = "0.1.0"

type (
	Handle            = entities.Handle
	Schema            = entities.Schema
	Field             = entities.Field
	Param             = entities.Param
	Function          = entities.Function
	Method            = entities.Method
	MethodFunc        = entities.MethodFunc
	CallbackInterface = entities.CallbackInterface
	Args              = entities.Args
	ErrorDetail       = entities.ErrorDetail
	Invokers          = schema.Invokers
	Bridge            = host.Bridge
)

// Predeclared schemas.
var (
	Void   = entities.Void
	Bool   = entities.Bool
	I8     = entities.I8
	I16    = entities.I16
	I32    = entities.I32
	I64    = entities.I64
	U8     = entities.U8
	U16    = entities.U16
	U32    = entities.U32
	U64    = entities.U64
	F32    = entities.F32
	F64    = entities.F64
	String = entities.String
)

// Open loads the config file at configPath and assembles a loaded bridge.
func Open(ctx context.Context, configPath string, invokers Invokers) (*Bridge, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return host.Open(ctx, host.Setup{Config: cfg, Invokers: invokers})
}

// ToErrorDetail converts a Go error to the structured form sent across the
// boundary.
func ToErrorDetail(err error) *ErrorDetail {
	return domainerrors.ToErrorDetail(err)
}
