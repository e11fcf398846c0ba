// Package metrics exposes Prometheus collectors for bridge traffic: native
// calls made by the function table, dispatches made by the native side, and
// live callback registrations.
//
// A nil *Collectors is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "ffibridge"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collectors groups the bridge metrics.
type Collectors struct {
	nativeCalls      *prometheus.CounterVec
	nativeDuration   *prometheus.HistogramVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	registrations    prometheus.Counter
	liveHandles      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		nativeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "native_calls_total",
			Help:      "Host-initiated calls into native exports.",
		}, []string{"function", "outcome"}),
		nativeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "native_call_duration_seconds",
			Help:      "Duration of host-initiated native calls, including marshalling.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"function"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dispatches_total",
			Help:      "Native-initiated invocations of host callbacks.",
		}, []string{"interface", "method", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of native-initiated callback dispatches.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"interface"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "callback_registrations_total",
			Help:      "Callback handles issued.",
		}),
		liveHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "callback_handles_live",
			Help:      "Callback handles currently registered.",
		}),
	}

	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{
		c.nativeCalls, c.nativeDuration, c.dispatches, c.dispatchDuration, c.registrations, c.liveHandles,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("failed to register bridge metrics: %w", err)
		}
	}
	return c, nil
}

// ObserveNativeCall records one host-initiated call.
func (c *Collectors) ObserveNativeCall(function string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.nativeCalls.WithLabelValues(function, outcome(err)).Inc()
	c.nativeDuration.WithLabelValues(function).Observe(d.Seconds())
}

// ObserveDispatch records one native-initiated dispatch. method is empty
// when the handle or selector could not be resolved.
func (c *Collectors) ObserveDispatch(iface, method string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(iface, method, outcome(err)).Inc()
	c.dispatchDuration.WithLabelValues(iface).Observe(d.Seconds())
}

// HandleRegistered records a newly issued handle.
func (c *Collectors) HandleRegistered() {
	if c == nil {
		return
	}
	c.registrations.Inc()
	c.liveHandles.Inc()
}

// HandlesReleased records n released handles.
func (c *Collectors) HandlesReleased(n int) {
	if c == nil || n == 0 {
		return
	}
	c.liveHandles.Sub(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
