package hostfuncs

import (
	"log/slog"
	"runtime/debug"
	"time"

	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/metrics"
)

// Middleware is a function that wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
//
// Example usage:
//
//	tracing := func(next Handler) Handler {
//	    return func(ctx DispatchContext, args []byte) ([]byte, error) {
//	        span := start(ctx.Handle())
//	        defer span.End()
//	        return next(ctx, args)
//	    }
//	}
type Middleware func(next Handler) Handler

// PanicRecoveryMiddleware returns a middleware that catches panics in host
// callbacks and converts them to a PanicError instead of crashing the host or
// trapping the native caller.
func PanicRecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx DispatchContext, args []byte) (result []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					result = nil
					err = &domainerrors.PanicError{Value: r, Stack: debug.Stack()}
				}
			}()
			return next(ctx, args)
		}
	}
}

// LoggingMiddleware returns a middleware that logs each dispatch with slog.
// Successful dispatches are logged at debug level, failures at warn.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx DispatchContext, args []byte) ([]byte, error) {
			start := time.Now()
			result, err := next(ctx, args)
			attrs := []any{
				"handle", uint64(ctx.Handle()),
				"selector", ctx.Selector(),
				"interface", ctx.Interface(),
				"method", ctx.Method(),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.WarnContext(ctx, "callback dispatch failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "callback dispatched", attrs...)
			}
			return result, err
		}
	}
}

// MetricsMiddleware returns a middleware that records dispatch counts and
// durations.
func MetricsMiddleware(m *metrics.Collectors) Middleware {
	return func(next Handler) Handler {
		return func(ctx DispatchContext, args []byte) ([]byte, error) {
			start := time.Now()
			result, err := next(ctx, args)
			m.ObserveDispatch(ctx.Interface(), ctx.Method(), time.Since(start), err)
			return result, err
		}
	}
}
