package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func counterWithLabels(mf *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range mf.GetMetric() {
		matched := 0
		for _, lp := range m.GetLabel() {
			if labels[lp.GetName()] == lp.GetValue() {
				matched++
			}
		}
		if matched == len(labels) {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveNativeCall("test_str", time.Millisecond, nil)
	c.ObserveNativeCall("test_str", time.Millisecond, errors.New("trap"))
	c.ObserveNativeCall("test_str", time.Millisecond, nil)
	c.ObserveDispatch("Listener", "on_event", time.Microsecond, nil)
	c.HandleRegistered()
	c.HandleRegistered()
	c.HandlesReleased(1)

	families := gather(t, reg)

	calls := families["ffibridge_native_calls_total"]
	require.NotNil(t, calls)
	assert.Equal(t, 2.0, counterWithLabels(calls, map[string]string{"function": "test_str", "outcome": OutcomeOK}))
	assert.Equal(t, 1.0, counterWithLabels(calls, map[string]string{"function": "test_str", "outcome": OutcomeError}))

	dispatches := families["ffibridge_dispatches_total"]
	require.NotNil(t, dispatches)
	assert.Equal(t, 1.0, counterWithLabels(dispatches, map[string]string{"interface": "Listener", "method": "on_event", "outcome": OutcomeOK}))

	assert.Equal(t, 2.0, families["ffibridge_callback_registrations_total"].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, families["ffibridge_callback_handles_live"].GetMetric()[0].GetGauge().GetValue())
}

func TestCollectors_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestCollectors_NilIsNoop(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() {
		c.ObserveNativeCall("f", time.Second, nil)
		c.ObserveDispatch("I", "m", time.Second, nil)
		c.HandleRegistered()
		c.HandlesReleased(3)
	})
}
