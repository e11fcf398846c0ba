package hostfuncs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reglet-dev/ffibridge/domain/entities"
	domainerrors "github.com/reglet-dev/ffibridge/domain/errors"
	"github.com/reglet-dev/ffibridge/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	panicHandler := func(ctx DispatchContext, args []byte) ([]byte, error) {
		panic("test panic")
	}

	wrapped := PanicRecoveryMiddleware()(panicHandler)

	// Should not panic, should return a PanicError
	result, err := wrapped(NewDispatchContext(context.Background(), 1, 0), nil)
	require.Error(t, err)
	assert.Nil(t, result)

	var panicErr *domainerrors.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "test panic", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestPanicRecoveryMiddleware_NoPanic(t *testing.T) {
	normalHandler := func(ctx DispatchContext, args []byte) ([]byte, error) {
		return []byte("ok"), nil
	}

	result, err := PanicRecoveryMiddleware()(normalHandler)(NewDispatchContext(context.Background(), 1, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), result)
}

func TestMiddlewareOrder_FIFO(t *testing.T) {
	var callOrder []string

	track := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx DispatchContext, args []byte) ([]byte, error) {
				callOrder = append(callOrder, name+"-before")
				result, err := next(ctx, args)
				callOrder = append(callOrder, name+"-after")
				return result, err
			}
		}
	}

	d, reg := newTestDispatcher(t, WithMiddleware(track("mw1"), track("mw2"), track("mw3")))
	h, err := reg.Register(&adder{}, adderIface)
	require.NoError(t, err)

	d.Dispatch(context.Background(), uint64(h), selAdd, []byte(`[1,2]`))

	// FIFO: mw1 wraps mw2 wraps mw3 wraps handler (onion model)
	expected := []string{
		"mw1-before", "mw2-before", "mw3-before",
		"mw3-after", "mw2-after", "mw1-after",
	}
	assert.Equal(t, expected, callOrder)
}

func TestMiddleware_SeesResolvedMethod(t *testing.T) {
	var iface, method string
	capture := func(next Handler) Handler {
		return func(ctx DispatchContext, args []byte) ([]byte, error) {
			assert.Empty(t, ctx.Method(), "unresolved before the handler runs")
			result, err := next(ctx, args)
			iface, method = ctx.Interface(), ctx.Method()
			return result, err
		}
	}

	d, reg := newTestDispatcher(t, WithMiddleware(capture))
	h, err := reg.Register(&adder{}, adderIface)
	require.NoError(t, err)

	d.Dispatch(context.Background(), uint64(h), selAdd, []byte(`[1,2]`))
	assert.Equal(t, "Adder", iface)
	assert.Equal(t, "add", method)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	d, reg := newTestDispatcher(t, WithMiddleware(LoggingMiddleware(logger)))
	h, err := reg.Register(&adder{}, adderIface)
	require.NoError(t, err)

	d.Dispatch(context.Background(), uint64(h), selAdd, []byte(`[1,2]`))
	assert.Contains(t, buf.String(), `"msg":"callback dispatched"`)
	assert.Contains(t, buf.String(), `"method":"add"`)

	buf.Reset()
	d.Dispatch(context.Background(), 999, selAdd, []byte(`[1,2]`))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "unknown callback handle 999")
}

func TestMetricsMiddleware(t *testing.T) {
	promReg := prometheus.NewRegistry()
	m, err := metrics.New(promReg)
	require.NoError(t, err)

	d, reg := newTestDispatcher(t, WithMiddleware(MetricsMiddleware(m)))
	h, err := reg.Register(&adder{}, adderIface)
	require.NoError(t, err)

	d.Dispatch(context.Background(), uint64(h), selAdd, []byte(`[1,2]`))
	d.Dispatch(context.Background(), uint64(h), selRefuse, nil)

	families, err := promReg.Gather()
	require.NoError(t, err)

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != "ffibridge_dispatches_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 2.0, total)
}

func TestMetricsMiddleware_CountsResultEncodingFailure(t *testing.T) {
	promReg := prometheus.NewRegistry()
	m, err := metrics.New(promReg)
	require.NoError(t, err)

	iface := entities.MustCallbackInterface("Liar",
		entities.Method{
			Name:   "name",
			Result: entities.String,
			Invoke: func(context.Context, any, entities.Args) (any, error) {
				return 42, nil
			},
		},
	)

	d, reg := newTestDispatcher(t, WithMiddleware(MetricsMiddleware(m)))
	h, err := reg.Register(struct{}{}, iface)
	require.NoError(t, err)

	res := decodeEnvelope(t, d.Dispatch(context.Background(), uint64(h), 0, nil))
	require.False(t, res.OK())
	assert.Equal(t, CodeSchemaMismatch, res.Error.Code)

	families, err := promReg.Gather()
	require.NoError(t, err)

	outcomes := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "ffibridge_dispatches_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "outcome" {
					outcomes[lp.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{metrics.OutcomeError: 1}, outcomes)
}

func TestDispatchContext(t *testing.T) {
	dc := NewDispatchContext(context.Background(), entities.Handle(7), 3)

	assert.Equal(t, entities.Handle(7), dc.Handle())
	assert.Equal(t, int32(3), dc.Selector())
	assert.Empty(t, dc.Interface())
	assert.Empty(t, dc.Method())

	_, ok := dc.GetValue("key")
	assert.False(t, ok)
	dc.SetValue("key", 42)
	v, ok := dc.GetValue("key")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	// Verify context methods work
	assert.Nil(t, dc.Done())
	assert.Nil(t, dc.Err())
}
