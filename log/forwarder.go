package log

import (
	"context"
	"log/slog"
)

// Forwarder re-emits native log lines through a host slog.Logger.
type Forwarder struct {
	logger *slog.Logger
	module string
}

// NewForwarder returns a Forwarder writing to logger, or slog.Default() when
// logger is nil. Every record carries a "module" attribute naming the source.
func NewForwarder(logger *slog.Logger, module string) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{logger: logger, module: module}
}

// Forward decodes payload and logs it at its declared level. Payloads that
// are not wire messages are logged verbatim at Info.
func (f *Forwarder) Forward(ctx context.Context, payload []byte) {
	msg, err := DecodeMessage(payload)
	if err != nil {
		f.logger.LogAttrs(ctx, slog.LevelInfo, string(payload), slog.String("module", f.module))
		return
	}

	level := ParseLevel(msg.Level)
	if !f.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(msg.Attrs)+1)
	attrs = append(attrs, slog.String("module", f.module))
	for _, a := range msg.Attrs {
		attrs = append(attrs, fromLogAttrWire(a))
	}
	f.logger.LogAttrs(ctx, level, msg.Message, attrs...)
}
