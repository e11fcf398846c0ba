// Package log carries structured log records from a native module to the
// host. Native code sends JSON records through the log_message host export;
// the host side re-emits them through slog with a Forwarder. Go native
// modules built for wasip1 can use Handler as their slog handler.
package log

import (
	"context"
	"log/slog"
)

// Handler implements slog.Handler by encoding records in the log_message wire
// form and passing them to a sink.
type Handler struct {
	opts  handlerConfig
	attrs []slog.Attr
	group string
}

// HandlerOption configures the Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	sink  func(ctx context.Context, payload []byte)
	level slog.Level
}

// defaultHandlerConfig returns the default configuration.
func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
		sink:  hostSink,
	}
}

// WithLevel sets the minimum log level to report.
// Records below this level are dropped before encoding.
func WithLevel(level slog.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSink replaces the destination of encoded records.
func WithSink(sink func(ctx context.Context, payload []byte)) HandlerOption {
	return func(c *handlerConfig) {
		c.sink = sink
	}
}

// NewHandler creates a new Handler with the given options.
func NewHandler(opts ...HandlerOption) *Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Handler{opts: cfg}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level
}

// Handle encodes the record and hands it to the sink.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if h.group != "" {
		var grouped []any
		record.Attrs(func(a slog.Attr) bool {
			grouped = append(grouped, a)
			return true
		})
		flat := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
		if len(grouped) > 0 {
			flat.AddAttrs(slog.Group(h.group, grouped...))
		}
		record = flat
	}

	payload, err := EncodeRecord(record, h.attrs...)
	if err != nil {
		return err
	}
	h.opts.sink(ctx, payload)
	return nil
}

// WithAttrs returns a new Handler that includes the given attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	if h.group != "" {
		members := make([]any, len(attrs))
		for i, a := range attrs {
			members[i] = a
		}
		attrs = []slog.Attr{slog.Group(h.group, members...)}
	}
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

// WithGroup returns a new Handler that nests subsequent record attributes
// under name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	next.group = name
	return &next
}
