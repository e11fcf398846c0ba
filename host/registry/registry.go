// Package registry implements the callback registry: the table mapping opaque
// handles to host callbacks the native side may invoke.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/domain/ports"
	"github.com/reglet-dev/ffibridge/metrics"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	logger  *slog.Logger
	metrics *metrics.Collectors
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		logger: slog.Default(),
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithLogger sets the logger used for registration lifecycle events.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(c *registryConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records issued and live handles.
func WithMetrics(m *metrics.Collectors) RegistryOption {
	return func(c *registryConfig) {
		c.metrics = m
	}
}

// Registry implements ports.CallbackRegistry.
//
// Handles are issued from an atomic counter starting at 1, so they are strictly
// monotonic and never reused for the lifetime of the registry. Registrations
// never expire: a handle stays valid until Release, a one-shot invocation, or
// Close.
type Registry struct {
	config  registryConfig
	entries sync.Map // map[entities.Handle]*entities.Registration
	next    atomic.Uint64
	live    atomic.Int64

	// lifecycle serializes Close against in-flight Register calls.
	lifecycle sync.RWMutex
	closed    bool
}

var _ ports.CallbackRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg}
}

// Register stores cb under a fresh handle.
func (r *Registry) Register(cb any, iface *entities.CallbackInterface) (entities.Handle, error) {
	return r.register(cb, iface, false)
}

// RegisterOneShot stores cb under a fresh handle that is released
// automatically when it is first invoked.
func (r *Registry) RegisterOneShot(cb any, iface *entities.CallbackInterface) (entities.Handle, error) {
	return r.register(cb, iface, true)
}

func (r *Registry) register(cb any, iface *entities.CallbackInterface, oneShot bool) (entities.Handle, error) {
	if cb == nil {
		return entities.InvalidHandle, fmt.Errorf("callback cannot be nil")
	}
	if iface == nil {
		return entities.InvalidHandle, fmt.Errorf("callback interface cannot be nil")
	}

	r.lifecycle.RLock()
	defer r.lifecycle.RUnlock()
	if r.closed {
		return entities.InvalidHandle, domainerrors.ErrRegistryClosed
	}

	h := entities.Handle(r.next.Add(1))
	r.entries.Store(h, &entities.Registration{
		Handle:    h,
		Callback:  cb,
		Interface: iface,
		OneShot:   oneShot,
	})
	r.live.Add(1)
	r.config.metrics.HandleRegistered()

	r.config.logger.Debug("callback registered",
		"handle", uint64(h),
		"interface", iface.Name,
		"one_shot", oneShot)
	return h, nil
}

// Lookup resolves a handle without invoking it.
func (r *Registry) Lookup(h entities.Handle) (*entities.Registration, error) {
	v, ok := r.entries.Load(h)
	if !ok {
		return nil, &domainerrors.UnknownHandleError{Handle: h}
	}
	return v.(*entities.Registration), nil
}

// Invoke calls the method at selector on the callback behind h. A one-shot
// registration is claimed atomically, so exactly one concurrent Invoke wins
// and the others see UnknownHandle.
func (r *Registry) Invoke(ctx context.Context, h entities.Handle, selector int32, args entities.Args) (any, error) {
	reg, err := r.Lookup(h)
	if err != nil {
		return nil, err
	}

	method, ok := reg.Interface.Method(selector)
	if !ok {
		return nil, &domainerrors.UnknownSelectorError{Interface: reg.Interface.Name, Selector: selector}
	}

	if reg.OneShot {
		if _, claimed := r.entries.LoadAndDelete(h); !claimed {
			return nil, &domainerrors.UnknownHandleError{Handle: h}
		}
		r.released(1)
		r.config.logger.DebugContext(ctx, "one-shot callback claimed", "handle", uint64(h))
	}

	return method.Invoke(ctx, reg.Callback, args)
}

// Release removes the registration for h. Releasing an unknown or already
// released handle is a no-op and reports false.
func (r *Registry) Release(h entities.Handle) bool {
	if _, ok := r.entries.LoadAndDelete(h); !ok {
		return false
	}
	r.released(1)
	r.config.logger.Debug("callback released", "handle", uint64(h))
	return true
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	return int(r.live.Load())
}

// Close drops every registration. Register fails with ErrRegistryClosed
// afterwards; Invoke and Lookup report UnknownHandle. Close is idempotent.
func (r *Registry) Close() error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	n := 0
	r.entries.Range(func(k, _ any) bool {
		if _, ok := r.entries.LoadAndDelete(k); ok {
			n++
		}
		return true
	})
	r.released(n)
	r.config.logger.Debug("callback registry closed", "dropped", n)
	return nil
}

func (r *Registry) released(n int) {
	r.live.Add(int64(-n))
	r.config.metrics.HandlesReleased(n)
}
