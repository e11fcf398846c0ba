package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var callerKey = &contextKey{name: "caller"}

// WithCaller names the native module making host calls under ctx. Log lines
// forwarded from that module carry the name.
func WithCaller(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, callerKey, name)
}

// CallerFromContext retrieves the caller name from the context.
func CallerFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(callerKey).(string)
	return name, ok && name != ""
}

// CallerName extracts the caller name from context, falling back to the module name.
func CallerName(ctx context.Context, mod api.Module) string {
	if name, ok := CallerFromContext(ctx); ok {
		return name
	}
	return mod.Name()
}
