package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — Prometheus метрики discharge workflow.
//
// Метрики регистрируются в переданном Registerer,
// поэтому в тестах можно использовать prometheus.NewRegistry().
type Metrics struct {
	orchestrations       *prometheus.CounterVec
	orchestrationSeconds prometheus.Histogram
	stepResults          *prometheus.CounterVec
	stepSeconds          *prometheus.HistogramVec
	deliveries           *prometheus.CounterVec
}

// NewMetrics создаёт и регистрирует метрики.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		orchestrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetflow",
			Name:      "orchestrations_total",
			Help:      "Discharge orchestrations by strategy and outcome.",
		}, []string{"strategy", "success"}),
		orchestrationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vetflow",
			Name:      "orchestration_duration_seconds",
			Help:      "Wall-clock duration of a discharge orchestration.",
			Buckets:   prometheus.DefBuckets,
		}),
		stepResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetflow",
			Name:      "step_results_total",
			Help:      "Step results by step and status.",
		}, []string{"step", "status"}),
		stepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vetflow",
			Name:      "step_duration_seconds",
			Help:      "Duration of executed steps.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetflow",
			Name:      "followup_deliveries_total",
			Help:      "Follow-up deliveries by channel and status.",
		}, []string{"channel", "status"}),
	}

	if reg != nil {
		reg.MustRegister(m.orchestrations, m.orchestrationSeconds, m.stepResults, m.stepSeconds, m.deliveries)
	}
	return m
}

// ObserveOrchestration записывает итог orchestration.
func (m *Metrics) ObserveOrchestration(strategy string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.orchestrations.WithLabelValues(strategy, strconv.FormatBool(success)).Inc()
	m.orchestrationSeconds.Observe(d.Seconds())
}

// ObserveStep записывает результат шага.
// Длительность пишется только для выполненных (не skipped) шагов.
func (m *Metrics) ObserveStep(step, status string, durationMs int64, executed bool) {
	if m == nil {
		return
	}
	m.stepResults.WithLabelValues(step, status).Inc()
	if executed {
		m.stepSeconds.WithLabelValues(step).Observe(float64(durationMs) / 1000)
	}
}

// ObserveDelivery записывает отправку follow-up.
func (m *Metrics) ObserveDelivery(channel, status string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, status).Inc()
}
