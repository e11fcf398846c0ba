// Package wazero connects the bridge to the wazero runtime: it adapts guest
// modules to ports.NativeModule and exports the bridge's host module.
package wazero

import (
	"context"
	"fmt"
	"log/slog"

	bridgelog "github.com/reglet-dev/ffibridge/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Host export names.
const (
	DefaultModuleName  = "bridge_host"
	ExportDispatch     = "dispatch"
	ExportFreeCallback = "free_callback"
	ExportLogMessage   = "log_message"
)

// Dispatcher receives native-initiated callback traffic.
type Dispatcher interface {
	// Dispatch runs a callback and returns the encoded result envelope.
	Dispatch(ctx context.Context, handle uint64, selector int32, args []byte) []byte

	// Release drops a registration on native's behalf.
	Release(ctx context.Context, handle uint64)

	// Fail encodes a failure envelope for an error detected before dispatch.
	Fail(err error) []byte
}

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// Logger receives adapter diagnostics and forwarded native log lines.
	Logger *slog.Logger

	// ModuleName is the host module name (default: "bridge_host").
	ModuleName string

	// CustomHandlers adds host functions beside the bridge's own.
	CustomHandlers []CustomHandler

	// MaxPayloadSize limits the size of payloads read from guest memory.
	MaxPayloadSize uint32
}

// CustomHandler represents an additional wazero host function.
type CustomHandler struct {
	// Name is the exported function name.
	Name string

	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name (default: "bridge_host").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxPayloadSize sets the maximum payload size read from guest memory.
func WithMaxPayloadSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxPayloadSize = size
	}
}

// WithLogger sets the logger for diagnostics and forwarded native logs.
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

// defaultAdapterConfig returns the default adapter configuration.
func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:     DefaultModuleName,
		MaxPayloadSize: DefaultMaxPayloadSize,
		Logger:         slog.Default(),
	}
}

// RegisterWithRuntime instantiates the bridge host module in runtime. Guests
// import from it:
//
//	dispatch(handle i64, selector i32, args i64) -> i64
//	free_callback(handle i64)
//	log_message(payload i64)
//
// Payloads are packed (ptr<<32 | len) references into guest memory. The args
// payload of dispatch stays owned by the guest; the returned envelope is
// allocated through the guest's allocate export and owned by the guest
// afterwards. A void success returns 0.
//
// It must be called before the guest is instantiated.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, d Dispatcher, opts ...AdapterOption) error {
	if d == nil {
		return fmt.Errorf("dispatcher cannot be nil")
	}
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &hostModule{cfg: cfg, dispatcher: d}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.dispatch),
			[]api.ValueType{api.ValueTypeI64, api.ValueTypeI32, api.ValueTypeI64},
			[]api.ValueType{api.ValueTypeI64}).
		WithParameterNames("handle", "selector", "args").
		Export(ExportDispatch)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.freeCallback),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		WithParameterNames("handle").
		Export(ExportFreeCallback)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.logMessage),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		WithParameterNames("payload").
		Export(ExportLogMessage)

	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	_, err := builder.Instantiate(ctx)
	return err
}

type hostModule struct {
	dispatcher Dispatcher
	cfg        AdapterConfig
}

// dispatch handles a native-initiated callback. It never traps the guest:
// every failure becomes an error envelope, and a response that cannot be
// written back is logged and reported as 0.
func (h *hostModule) dispatch(ctx context.Context, mod api.Module, stack []uint64) {
	handle := stack[0]
	selector := api.DecodeI32(stack[1])
	guest := NewModule(mod, h.cfg.MaxPayloadSize)

	var resp []byte
	args, err := guest.ReadPayload(ctx, stack[2])
	if err != nil {
		h.cfg.Logger.ErrorContext(ctx, "wazero: failed to read dispatch arguments",
			"handle", handle, "selector", selector, "error", err)
		resp = h.dispatcher.Fail(fmt.Errorf("read dispatch arguments: %w", err))
	} else {
		resp = h.dispatcher.Dispatch(ctx, handle, selector, args)
	}

	stack[0] = h.writeResponse(ctx, guest, resp)
}

func (h *hostModule) writeResponse(ctx context.Context, guest *Module, resp []byte) uint64 {
	if len(resp) == 0 {
		return 0
	}
	ref, err := guest.WritePayload(ctx, resp)
	if err != nil {
		h.cfg.Logger.ErrorContext(ctx, "wazero: failed to write dispatch response", "error", err)
		return 0
	}
	return ref
}

func (h *hostModule) freeCallback(ctx context.Context, _ api.Module, stack []uint64) {
	h.dispatcher.Release(ctx, stack[0])
}

func (h *hostModule) logMessage(ctx context.Context, mod api.Module, stack []uint64) {
	payload, err := NewModule(mod, h.cfg.MaxPayloadSize).ReadPayload(ctx, stack[0])
	if err != nil {
		h.cfg.Logger.WarnContext(ctx, "wazero: failed to read native log message", "error", err)
		return
	}
	if len(payload) == 0 {
		return
	}
	bridgelog.NewForwarder(h.cfg.Logger, CallerName(ctx, mod)).Forward(ctx, payload)
}
