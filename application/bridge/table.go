package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/reglet-dev/ffibridge/application/codec"
	"github.com/reglet-dev/ffibridge/domain/entities"
	"github.com/reglet-dev/ffibridge/domain/ports"
	"github.com/reglet-dev/ffibridge/metrics"
)

// DefaultEntryPrefix is prepended to a function name to derive its native
// export when no entry is declared.
const DefaultEntryPrefix = "native_"

// Table is the bridge function table. Bound functions are immutable once
// bound; Bind may be called more than once to add functions.
type Table struct {
	native   ports.NativeModule
	registry ports.CallbackRegistry
	codec    *codec.Codec
	logger   *slog.Logger
	metrics  *metrics.Collectors
	prefix   string

	mu        sync.RWMutex
	functions map[string]*Bound
}

// Option configures a Table.
type Option func(*Table)

// WithCodec sets the codec for aggregate arguments and results.
func WithCodec(c *codec.Codec) Option {
	return func(t *Table) {
		if c != nil {
			t.codec = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics records native call counts and durations.
func WithMetrics(m *metrics.Collectors) Option {
	return func(t *Table) {
		t.metrics = m
	}
}

// WithEntryPrefix overrides DefaultEntryPrefix.
func WithEntryPrefix(prefix string) Option {
	return func(t *Table) {
		t.prefix = prefix
	}
}

// NewTable creates an empty table calling into native.
func NewTable(native ports.NativeModule, registry ports.CallbackRegistry, opts ...Option) (*Table, error) {
	if native == nil {
		return nil, fmt.Errorf("native module cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("callback registry cannot be nil")
	}
	t := &Table{
		native:    native,
		registry:  registry,
		logger:    slog.Default(),
		prefix:    DefaultEntryPrefix,
		functions: make(map[string]*Bound),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.codec == nil {
		t.codec = codec.New()
	}
	return t, nil
}

// EntryName returns the native export for a function name.
func (t *Table) EntryName(name string) string {
	return t.prefix + name
}

// Bind adds functions to the table. A function without an Entry is bound to
// EntryName(Name). Bind is all-or-nothing: on error no function is added.
func (t *Table) Bind(fns ...entities.Function) error {
	bound := make(map[string]*Bound, len(fns))
	for _, fn := range fns {
		if fn.Entry == "" {
			fn.Entry = t.EntryName(fn.Name)
		}
		if fn.Result == nil {
			fn.Result = entities.Void
		}
		if err := fn.Validate(); err != nil {
			return err
		}
		if _, dup := bound[fn.Name]; dup {
			return fmt.Errorf("duplicate function name: %q", fn.Name)
		}
		bound[fn.Name] = &Bound{table: t, fn: fn}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for name := range bound {
		if _, exists := t.functions[name]; exists {
			return fmt.Errorf("function %q already bound", name)
		}
	}
	for name, b := range bound {
		t.functions[name] = b
		t.logger.Debug("bound native function", "function", name, "entry", b.fn.Entry)
	}
	return nil
}

// Lookup returns the bound function with the given name.
func (t *Table) Lookup(name string) (*Bound, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.functions[name]
	return b, ok
}

// Names returns a sorted list of bound function names.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.functions))
	for name := range t.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes the bound function name. See Bound.Call.
func (t *Table) Call(ctx context.Context, name string, result any, args ...any) error {
	b, ok := t.Lookup(name)
	if !ok {
		return fmt.Errorf("no bound function %q", name)
	}
	return b.Call(ctx, result, args...)
}

// Call invokes the bound function name and returns its result as a T.
func Call[T any](ctx context.Context, t *Table, name string, args ...any) (T, error) {
	var out T
	err := t.Call(ctx, name, &out, args...)
	return out, err
}
