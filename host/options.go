package host

import (
	"log/slog"

	"github.com/reglet-dev/ffibridge/hostfuncs"
	infwazero "github.com/reglet-dev/ffibridge/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
)

// DefaultModuleName is the instance name given to the loaded native module.
const DefaultModuleName = "native"

type executorConfig struct {
	dispatcher     *hostfuncs.Dispatcher
	logger         *slog.Logger
	runtimeConfig  wazero.RuntimeConfig
	env            map[string]string
	moduleName     string
	hostModuleName string
	maxPayloadSize uint32
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		logger:         slog.Default(),
		moduleName:     DefaultModuleName,
		hostModuleName: infwazero.DefaultModuleName,
		maxPayloadSize: infwazero.DefaultMaxPayloadSize,
	}
}

// Option defines a functional option for configuring the Executor.
type Option func(*executorConfig)

// WithDispatcher routes native-initiated callbacks to d. Without it the
// executor creates a dispatcher over a fresh callback registry.
func WithDispatcher(d *hostfuncs.Dispatcher) Option {
	return func(c *executorConfig) {
		c.dispatcher = d
	}
}

// WithLogger sets the logger for executor events and forwarded native logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *executorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithModuleName sets the instance name of the loaded native module.
func WithModuleName(name string) Option {
	return func(c *executorConfig) {
		if name != "" {
			c.moduleName = name
		}
	}
}

// WithHostModuleName sets the import module name of the bridge host exports.
func WithHostModuleName(name string) Option {
	return func(c *executorConfig) {
		if name != "" {
			c.hostModuleName = name
		}
	}
}

// WithMaxPayloadSize bounds payloads read from native memory.
func WithMaxPayloadSize(size uint32) Option {
	return func(c *executorConfig) {
		if size > 0 {
			c.maxPayloadSize = size
		}
	}
}

// WithEnv sets the WASI environment of the native module.
func WithEnv(env map[string]string) Option {
	return func(c *executorConfig) {
		c.env = env
	}
}

// WithRuntimeConfig replaces the wazero runtime configuration.
func WithRuntimeConfig(rc wazero.RuntimeConfig) Option {
	return func(c *executorConfig) {
		c.runtimeConfig = rc
	}
}
