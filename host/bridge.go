package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/reglet-dev/ffibridge/application/bridge"
	"github.com/reglet-dev/ffibridge/application/codec"
	"github.com/reglet-dev/ffibridge/application/config"
	"github.com/reglet-dev/ffibridge/application/schema"
	"github.com/reglet-dev/ffibridge/host/registry"
	"github.com/reglet-dev/ffibridge/hostfuncs"
	"github.com/reglet-dev/ffibridge/metrics"
	"github.com/reglet-dev/ffibridge/wireformat"
)

// Setup is the input to Open.
type Setup struct {
	// Config is required.
	Config *config.Config

	// Invokers supplies the method thunks of the manifest's callback interfaces.
	Invokers schema.Invokers

	// Registerer receives the collectors when Config.Metrics is set.
	// Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// Logger defaults to a text logger on stderr at Config.LogLevel.
	Logger *slog.Logger

	// Validator enables struct constraint checks in the codec.
	Validator *validator.Validate
}

// Bridge is an assembled, loaded bridge.
type Bridge struct {
	Config   *config.Config
	Metrics  *metrics.Collectors
	Registry *registry.Registry
	Executor *Executor
	Table    *bridge.Table

	// Bindings is nil when the config names no manifest.
	Bindings *schema.Bindings
}

// Open builds every bridge component from s, loads the native module, and
// binds the manifest's functions.
func Open(ctx context.Context, s Setup) (*Bridge, error) {
	cfg := s.Config
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	}

	var m *metrics.Collectors
	if cfg.Metrics {
		reg := s.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		var err error
		if m, err = metrics.New(reg); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	format, err := wireformat.ByName(cfg.WireFormat)
	if err != nil {
		return nil, err
	}
	codecOpts := []codec.Option{codec.WithFormat(format)}
	if s.Validator != nil {
		codecOpts = append(codecOpts, codec.WithValidator(s.Validator))
	}
	c := codec.New(codecOpts...)

	reg := registry.NewRegistry(registry.WithLogger(logger), registry.WithMetrics(m))
	d, err := hostfuncs.NewDispatcher(reg,
		hostfuncs.WithCodec(c),
		hostfuncs.WithLogger(logger),
		hostfuncs.WithMiddleware(hostfuncs.LoggingMiddleware(logger), hostfuncs.MetricsMiddleware(m)),
	)
	if err != nil {
		return nil, err
	}

	exec, err := NewExecutor(ctx,
		WithDispatcher(d),
		WithLogger(logger),
		WithModuleName(moduleName(cfg.Module)),
		WithHostModuleName(cfg.HostModule),
		WithMaxPayloadSize(cfg.MaxPayloadSize),
		WithEnv(cfg.Env),
	)
	if err != nil {
		return nil, err
	}

	b := &Bridge{Config: cfg, Metrics: m, Registry: reg, Executor: exec}
	if err := b.bind(ctx, c, logger, s.Invokers); err != nil {
		_ = b.Close(ctx)
		return nil, err
	}
	return b, nil
}

func (b *Bridge) bind(ctx context.Context, c *codec.Codec, logger *slog.Logger, invokers schema.Invokers) error {
	if err := b.Executor.LoadFile(ctx, b.Config.Module); err != nil {
		return err
	}

	table, err := bridge.NewTable(b.Executor, b.Registry,
		bridge.WithCodec(c),
		bridge.WithLogger(logger),
		bridge.WithMetrics(b.Metrics),
		bridge.WithEntryPrefix(b.Config.EntryPrefix),
	)
	if err != nil {
		return err
	}
	b.Table = table

	if b.Config.Manifest == "" {
		return nil
	}
	bindings, err := ResolveFile(b.Config.Manifest, invokers)
	if err != nil {
		return err
	}
	if err := table.Bind(bindings.Functions...); err != nil {
		return err
	}
	b.Bindings = bindings
	logger.InfoContext(ctx, "bridge ready", "module", b.Config.Module, "functions", table.Names())
	return nil
}

// Close releases every callback registration and the native module.
func (b *Bridge) Close(ctx context.Context) error {
	return errors.Join(b.Registry.Close(), b.Executor.Close(ctx))
}

func moduleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
