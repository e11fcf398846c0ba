package hostfuncs

import (
	"context"

	"github.com/reglet-dev/ffibridge/domain/entities"
)

// DispatchContext wraps a standard context.Context with dispatch-specific
// helpers. Interface and Method are empty until the handle and selector have
// been resolved, so middleware should read them after calling next.
type DispatchContext interface {
	context.Context

	// Handle returns the callback handle being invoked.
	Handle() entities.Handle

	// Selector returns the requested method selector.
	Selector() int32

	// Interface returns the resolved callback interface name.
	Interface() string

	// Method returns the resolved method name.
	Method() string

	// SetValue stores a request-scoped value. Unlike context.WithValue,
	// this mutates the existing DispatchContext.
	SetValue(key, value any)

	// GetValue retrieves a request-scoped value set by SetValue.
	GetValue(key any) (value any, ok bool)
}

type dispatchContext struct {
	context.Context
	values   map[any]any
	iface    *entities.CallbackInterface
	method   *entities.Method
	handle   entities.Handle
	selector int32
}

// NewDispatchContext creates a DispatchContext wrapping ctx.
func NewDispatchContext(ctx context.Context, h entities.Handle, selector int32) DispatchContext {
	return &dispatchContext{
		Context:  ctx,
		handle:   h,
		selector: selector,
		values:   make(map[any]any),
	}
}

func (c *dispatchContext) Handle() entities.Handle {
	return c.handle
}

func (c *dispatchContext) Selector() int32 {
	return c.selector
}

func (c *dispatchContext) Interface() string {
	if c.iface == nil {
		return ""
	}
	return c.iface.Name
}

func (c *dispatchContext) Method() string {
	if c.method == nil {
		return ""
	}
	return c.method.Name
}

func (c *dispatchContext) SetValue(key, value any) {
	c.values[key] = value
}

func (c *dispatchContext) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *dispatchContext) resolved(iface *entities.CallbackInterface, m *entities.Method) {
	c.iface = iface
	c.method = m
}
