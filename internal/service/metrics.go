package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsObserver counts calls and records their latency.
type MetricsObserver struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsObserver registers the arbor_service_* collectors with reg.
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	m := &MetricsObserver{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "service",
			Name:      "calls_total",
			Help:      "Guarded service calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbor",
			Subsystem: "service",
			Name:      "call_duration_seconds",
			Help:      "Guarded service call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MetricsObserver) ObserveCall(_ context.Context, event CallEvent) {
	outcome := "ok"
	if !event.Success {
		outcome = string(event.Code)
	}
	m.calls.WithLabelValues(event.Operation, outcome).Inc()
	m.duration.WithLabelValues(event.Operation).Observe(event.Duration.Seconds())
}
