package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/ffibridge/application/bridge"
	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/host/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	ctx := context.Background()
	e, err := NewExecutor(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

func TestNewExecutor(t *testing.T) {
	e := newExecutor(t)
	assert.NotNil(t, e.Dispatcher(), "a default dispatcher is created")
	assert.False(t, e.Loaded())
}

func TestExecutor_CallsNativeExport(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	require.NoError(t, e.Load(ctx, addModule))
	assert.True(t, e.Loaded())

	out, err := e.Call(ctx, "native_add", 40, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{42}, out)

	_, err = e.Call(ctx, "native_missing")
	require.Error(t, err)

	assert.Empty(t, e.LastError(ctx), "bridge_last_error is optional")
	_, err = e.WritePayload(ctx, []byte("x"))
	require.Error(t, err, "module has no allocator")
}

func TestExecutor_BoundFunction(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	require.NoError(t, e.Load(ctx, addModule))

	table, err := bridge.NewTable(e, registry.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, table.Bind(entities.Function{
		Name:   "add",
		Params: []entities.Param{entities.NewParam("a", entities.I64), entities.NewParam("b", entities.I64)},
		Result: entities.I64,
	}))

	sum, err := bridge.Call[int64](ctx, table, "add", int64(-5), int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(-2), sum)
}

func TestExecutor_LoadExactlyOnce(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	require.NoError(t, e.Load(ctx, addModule))

	err := e.Load(ctx, emptyModule)
	require.ErrorIs(t, err, domainerrors.ErrLibraryLoad)
	assert.Contains(t, err.Error(), "already loaded")

	// The first module stays usable.
	_, err = e.Call(ctx, "native_add", 1, 1)
	require.NoError(t, err)
}

func TestExecutor_FailedLoadIsFatal(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t, WithModuleName("broken"))

	err := e.Load(ctx, []byte("not wasm"))
	var loadErr *domainerrors.LibraryLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "broken", loadErr.Module)

	err = e.Load(ctx, addModule)
	require.ErrorIs(t, err, domainerrors.ErrLibraryLoad)
	assert.Contains(t, err.Error(), "earlier load failed")

	_, err = e.Call(ctx, "native_add", 1, 2)
	require.ErrorIs(t, err, domainerrors.ErrLibraryLoad)
	assert.True(t, errors.Is(err, ErrNotLoaded))
}

func TestExecutor_NotLoaded(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)

	_, err := e.Call(ctx, "native_add")
	require.ErrorIs(t, err, ErrNotLoaded)
	_, err = e.WritePayload(ctx, []byte("x"))
	require.ErrorIs(t, err, domainerrors.ErrLibraryLoad)
	_, err = e.ReadPayload(ctx, 0)
	require.ErrorIs(t, err, domainerrors.ErrLibraryLoad)

	assert.NotPanics(t, func() { e.FreePayload(ctx, 1<<32|1) })
	assert.Empty(t, e.LastError(ctx))
}

func TestExecutor_LoadFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "add.wasm")
	require.NoError(t, os.WriteFile(path, addModule, 0o600))

	e := newExecutor(t)
	require.NoError(t, e.LoadFile(ctx, path))

	missing := newExecutor(t)
	err := missing.LoadFile(ctx, filepath.Join(t.TempDir(), "absent.wasm"))
	require.ErrorIs(t, err, domainerrors.ErrLibraryLoad)
}

func TestExecutorOptions(t *testing.T) {
	cfg := defaultExecutorConfig()
	for _, opt := range []Option{
		WithModuleName("demo"),
		WithModuleName(""),
		WithHostModuleName("custom_host"),
		WithMaxPayloadSize(1024),
		WithMaxPayloadSize(0),
		WithEnv(map[string]string{"A": "1"}),
		WithLogger(nil),
	} {
		opt(&cfg)
	}

	assert.Equal(t, "demo", cfg.moduleName)
	assert.Equal(t, "custom_host", cfg.hostModuleName)
	assert.Equal(t, uint32(1024), cfg.maxPayloadSize)
	assert.Equal(t, map[string]string{"A": "1"}, cfg.env)
	assert.NotNil(t, cfg.logger)
}
