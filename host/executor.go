package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/domain/ports"
	"github.com/reglet-dev/ffibridge/host/registry"
	"github.com/reglet-dev/ffibridge/hostfuncs"
	infwazero "github.com/reglet-dev/ffibridge/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// ErrNotLoaded is wrapped by the LibraryLoadError returned from calls made
// before a module is loaded.
var ErrNotLoaded = errors.New("no native module loaded")

var _ ports.NativeModule = (*Executor)(nil)

// Executor manages the lifecycle of the native module.
type Executor struct {
	runtime    wazero.Runtime
	dispatcher *hostfuncs.Dispatcher
	config     executorConfig

	mu       sync.RWMutex
	module   *infwazero.Module
	loadErr  error
	attempts int
}

// NewExecutor creates a runtime with WASI and the bridge host module
// instantiated, ready for Load.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	// Default dispatcher if not provided
	if cfg.dispatcher == nil {
		d, err := hostfuncs.NewDispatcher(registry.NewRegistry(registry.WithLogger(cfg.logger)),
			hostfuncs.WithLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create default dispatcher: %w", err)
		}
		cfg.dispatcher = d
	}

	rc := cfg.runtimeConfig
	if rc == nil {
		rc = wazero.NewRuntimeConfig()
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	err := infwazero.RegisterWithRuntime(ctx, rt, cfg.dispatcher,
		infwazero.WithModuleName(cfg.hostModuleName),
		infwazero.WithMaxPayloadSize(cfg.maxPayloadSize),
		infwazero.WithLogger(cfg.logger),
	)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return &Executor{runtime: rt, dispatcher: cfg.dispatcher, config: cfg}, nil
}

// Dispatcher returns the dispatcher serving the native module's callbacks.
func (e *Executor) Dispatcher() *hostfuncs.Dispatcher {
	return e.dispatcher
}

// Load compiles and instantiates the native module. It succeeds at most once:
// a second call, or any call after a failed load, returns LibraryLoadError.
// A reactor module's _initialize export runs during instantiation.
func (e *Executor) Load(ctx context.Context, wasmBytes []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.attempts++
	if e.attempts > 1 {
		cause := errors.New("native module already loaded")
		if e.loadErr != nil {
			cause = fmt.Errorf("earlier load failed: %w", e.loadErr)
		}
		return &domainerrors.LibraryLoadError{Module: e.config.moduleName, Err: cause}
	}

	mod, err := e.instantiate(ctx, wasmBytes)
	if err != nil {
		e.loadErr = err
		e.config.logger.ErrorContext(ctx, "failed to load native module", "module", e.config.moduleName, "error", err)
		return &domainerrors.LibraryLoadError{Module: e.config.moduleName, Err: err}
	}

	e.module = mod
	exports := mod.Exports()
	sort.Strings(exports)
	e.config.logger.DebugContext(ctx, "native module loaded", "module", e.config.moduleName, "exports", exports)
	return nil
}

// LoadFile reads and loads the native module at path.
func (e *Executor) LoadFile(ctx context.Context, path string) error {
	wasmBytes, err := os.ReadFile(path) //nolint:gosec // G304: module path is supplied by the operator
	if err != nil {
		return &domainerrors.LibraryLoadError{Module: path, Err: err}
	}
	return e.Load(ctx, wasmBytes)
}

func (e *Executor) instantiate(ctx context.Context, wasmBytes []byte) (*infwazero.Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}

	mc := wazero.NewModuleConfig().
		WithName(e.config.moduleName).
		WithStartFunctions("_initialize").
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)
	for k, v := range e.config.env {
		mc = mc.WithEnv(k, v)
	}

	mod, err := e.runtime.InstantiateModule(ctx, compiled, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	return infwazero.NewModule(mod, e.config.maxPayloadSize), nil
}

// Loaded reports whether a native module is loaded.
func (e *Executor) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.module != nil
}

func (e *Executor) loaded() (*infwazero.Module, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.module == nil {
		cause := ErrNotLoaded
		if e.loadErr != nil {
			cause = fmt.Errorf("%w: %w", ErrNotLoaded, e.loadErr)
		}
		return nil, &domainerrors.LibraryLoadError{Module: e.config.moduleName, Err: cause}
	}
	return e.module, nil
}

// Call implements ports.NativeModule. Calls must not overlap; see the package
// documentation.
func (e *Executor) Call(ctx context.Context, entry string, args ...uint64) ([]uint64, error) {
	mod, err := e.loaded()
	if err != nil {
		return nil, err
	}
	return mod.Call(ctx, entry, args...)
}

// WritePayload implements ports.NativeModule.
func (e *Executor) WritePayload(ctx context.Context, data []byte) (uint64, error) {
	mod, err := e.loaded()
	if err != nil {
		return 0, err
	}
	return mod.WritePayload(ctx, data)
}

// ReadPayload implements ports.NativeModule.
func (e *Executor) ReadPayload(ctx context.Context, ref uint64) ([]byte, error) {
	mod, err := e.loaded()
	if err != nil {
		return nil, err
	}
	return mod.ReadPayload(ctx, ref)
}

// FreePayload implements ports.NativeModule.
func (e *Executor) FreePayload(ctx context.Context, ref uint64) {
	if mod, err := e.loaded(); err == nil {
		mod.FreePayload(ctx, ref)
	}
}

// LastError implements ports.NativeModule.
func (e *Executor) LastError(ctx context.Context) string {
	mod, err := e.loaded()
	if err != nil {
		return ""
	}
	return mod.LastError(ctx)
}

// Close releases the runtime and every module in it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
