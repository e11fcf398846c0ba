package ports

import (
	"context"

	"github.com/reglet-dev/ffibridge/domain/entities"
)

// CallbackRegistry maps opaque handles to live host callbacks.
type CallbackRegistry interface {
	// Register stores cb and returns a fresh, never-zero handle.
	Register(cb any, iface *entities.CallbackInterface) (entities.Handle, error)

	// RegisterOneShot is like Register but the registration is released
	// automatically after its first invocation.
	RegisterOneShot(cb any, iface *entities.CallbackInterface) (entities.Handle, error)

	// Lookup resolves a handle without invoking it.
	Lookup(h entities.Handle) (*entities.Registration, error)

	// Invoke calls the method at selector on the callback behind h.
	Invoke(ctx context.Context, h entities.Handle, selector int32, args entities.Args) (any, error)

	// Release removes the registration; unknown handles are ignored.
	Release(h entities.Handle) bool
}
