package cleaner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics exposes engine counters for scraping. Optional: a
// nil *PrometheusMetrics is a no-op everywhere.
type PrometheusMetrics struct {
	registry        prometheus.Registerer
	actionsTotal    *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	floodWaitsTotal prometheus.Counter
	inflightActions *prometheus.GaugeVec
	targetsTotal    prometheus.Gauge
}

// InitPrometheusMetrics registers engine metrics under the given
// namespace. Pass nil to use the default registerer.
func InitPrometheusMetrics(namespace string, reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		registry: reg,
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_actions_total",
				Help:      "Total number of cleanup actions by category and status",
			},
			[]string{"action", "status"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cleanup_action_duration_seconds",
				Help:      "Duration of cleanup actions including rate-limit waits and retries",
				Buckets:   []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"action"},
		),
		floodWaitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_flood_waits_total",
				Help:      "Total number of platform wait demands honored",
			},
		),
		inflightActions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cleanup_inflight_actions",
				Help:      "Number of actions currently in flight per category",
			},
			[]string{"action"},
		),
		targetsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cleanup_targets_total",
				Help:      "Number of targets enumerated for the current job",
			},
		),
	}

	reg.MustRegister(
		m.actionsTotal,
		m.actionDuration,
		m.floodWaitsTotal,
		m.inflightActions,
		m.targetsTotal,
	)

	return m
}

// RecordAction observes one terminal action.
func (m *PrometheusMetrics) RecordAction(action ActionType, status Status, duration time.Duration) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(string(action), string(status)).Inc()
	m.actionDuration.WithLabelValues(string(action)).Observe(duration.Seconds())
}

// RecordFloodWait counts one honored platform wait demand.
func (m *PrometheusMetrics) RecordFloodWait() {
	if m == nil {
		return
	}
	m.floodWaitsTotal.Inc()
}

// ActionStarted marks an action in flight.
func (m *PrometheusMetrics) ActionStarted(action ActionType) {
	if m == nil {
		return
	}
	m.inflightActions.WithLabelValues(string(action)).Inc()
}

// ActionFinished removes an action from the in-flight gauge.
func (m *PrometheusMetrics) ActionFinished(action ActionType) {
	if m == nil {
		return
	}
	m.inflightActions.WithLabelValues(string(action)).Dec()
}

// SetTargetCount records the enumerated target count.
func (m *PrometheusMetrics) SetTargetCount(n int) {
	if m == nil {
		return
	}
	m.targetsTotal.Set(float64(n))
}
