package hostfuncs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/ffibridge/application/codec"
	"github.com/reglet-dev/ffibridge/domain/entities"
	"github.com/reglet-dev/ffibridge/domain/ports"
	"github.com/reglet-dev/ffibridge/wireformat"
)

// Dispatcher is the native-invoked re-entry point. It is stateless between
// calls and safe for concurrent use by many native threads.
type Dispatcher struct {
	registry ports.CallbackRegistry
	codec    *codec.Codec
	logger   *slog.Logger
	handler  Handler
	fallback []byte
}

// DispatcherOption is a functional option for configuring a Dispatcher.
type DispatcherOption func(*dispatcherBuilder)

type dispatcherBuilder struct {
	codec      *codec.Codec
	logger     *slog.Logger
	middleware []Middleware
}

// WithCodec sets the codec used for argument tuples and result envelopes.
// The default is a JSON codec.
func WithCodec(c *codec.Codec) DispatcherOption {
	return func(b *dispatcherBuilder) {
		if c != nil {
			b.codec = c
		}
	}
}

// WithLogger sets the logger for dispatcher-level events.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(b *dispatcherBuilder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMiddleware adds middleware to the dispatch chain.
// Middleware executes in FIFO order (first added wraps first). Panic recovery
// is always installed outermost.
func WithMiddleware(mw ...Middleware) DispatcherOption {
	return func(b *dispatcherBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}

// NewDispatcher creates a dispatcher over registry.
//
// Example usage:
//
//	d, err := NewDispatcher(reg,
//	    WithCodec(c),
//	    WithMiddleware(LoggingMiddleware(logger), MetricsMiddleware(m)),
//	)
func NewDispatcher(registry ports.CallbackRegistry, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("callback registry cannot be nil")
	}
	b := &dispatcherBuilder{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if b.codec == nil {
		b.codec = codec.New()
	}

	d := &Dispatcher{
		registry: registry,
		codec:    b.codec,
		logger:   b.logger,
		fallback: internalFailure(b.codec.Format()),
	}

	chain := append([]Middleware{PanicRecoveryMiddleware()}, b.middleware...)
	handler := d.invoke
	// Apply middleware in reverse order so first middleware wraps outermost
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}
	d.handler = handler
	return d, nil
}

// Dispatch invokes the method at selector on the callback behind handle with
// the encoded argument tuple args, and returns the encoded outcome:
//
//   - void success: an empty payload
//   - value success: a {"value": v} envelope
//   - failure: an {"error": {message, type, code}} envelope
//
// Dispatch never panics and never returns a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, handle uint64, selector int32, args []byte) []byte {
	payload, err := d.handler(NewDispatchContext(ctx, entities.Handle(handle), selector), args)
	if err != nil {
		return encodeFailure(d.codec.Format(), err, d.fallback)
	}
	return payload
}

// encodeValue builds the success envelope for a non-void result. Scalars take
// their tuple form so booleans cross as 0/1 words.
func (d *Dispatcher) encodeValue(ctx context.Context, method *entities.Method, result any) ([]byte, error) {
	if method.Result.Kind == entities.KindCallback {
		if _, isHandle := result.(entities.Handle); !isHandle && result != nil {
			// A host object returned to native is registered so native holds a handle.
			h, err := d.registry.Register(result, method.Result.Interface)
			if err != nil {
				return nil, err
			}
			d.logger.DebugContext(ctx, "registered returned callback", "handle", uint64(h), "interface", method.Result.Name)
			result = h
		}
	}

	value, err := d.codec.ToTupleElem(result, method.Result)
	if err != nil {
		return nil, err
	}
	return wireformat.EncodeResult(d.codec.Format(), &entities.DispatchResult{Value: value})
}

// Release drops a registration on behalf of the native side. Unknown handles
// are ignored.
func (d *Dispatcher) Release(ctx context.Context, handle uint64) {
	released := d.registry.Release(entities.Handle(handle))
	d.logger.DebugContext(ctx, "native released callback", "handle", handle, "released", released)
}

// Fail encodes the failure envelope for an error detected before dispatch,
// such as an unreadable argument payload.
func (d *Dispatcher) Fail(err error) []byte {
	return encodeFailure(d.codec.Format(), err, d.fallback)
}

// Codec returns the dispatcher's codec.
func (d *Dispatcher) Codec() *codec.Codec {
	return d.codec
}
