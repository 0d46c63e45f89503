package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCompleted = "completed"
	outcomeAbandoned = "abandoned"

	reasonInvalidTransition = "invalid_transition"
	reasonStaleRun          = "stale_run"
	reasonAfterTermination  = "after_termination"
)

type Metrics struct {
	SessionsRecorded *prometheus.CounterVec
	PersistFailures  prometheus.Counter
	PersistRetries   prometheus.Counter
	IgnoredEvents    *prometheus.CounterVec
	SessionRunning   prometheus.Gauge
}

// NewMetrics registers the focus metrics on reg. A nil reg gets a private
// registry so tests never collide on the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		SessionsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grove",
			Name:      "sessions_recorded_total",
			Help:      "Focus sessions written to the history, by outcome",
		}, []string{"outcome"}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "grove",
			Name:      "persist_failures_total",
			Help:      "Sessions that could not be written after all retries",
		}),
		PersistRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "grove",
			Name:      "persist_retries_total",
			Help:      "Failed session write attempts that were retried",
		}),
		IgnoredEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grove",
			Name:      "ignored_events_total",
			Help:      "Requests and timer events dropped by the state machine, by reason",
		}, []string{"reason"}),
		SessionRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "grove",
			Name:      "session_running",
			Help:      "1 while a focus session is running",
		}),
	}
}

func outcomeLabel(success bool) string {
	if success {
		return outcomeCompleted
	}
	return outcomeAbandoned
}
