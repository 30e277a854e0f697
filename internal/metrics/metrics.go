// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/i474232898/weather-ingest/internal/weather"
)

// Collector implements weather.Recorder.
type Collector struct {
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	rows         *prometheus.CounterVec
	backfillDays *prometheus.CounterVec
}

// New registers the pipeline collectors with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Subsystem: "pipeline",
			Name:      "steps_total",
			Help:      "Pipeline step executions by kind, step and result.",
		}, []string{"kind", "step", "result"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "weather",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Pipeline step latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "step"}),
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Subsystem: "store",
			Name:      "rows_total",
			Help:      "Rows deleted or inserted by kind.",
		}, []string{"kind", "op"}),
		backfillDays: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather",
			Subsystem: "backfill",
			Name:      "days_total",
			Help:      "Backfilled days by result.",
		}, []string{"result"}),
	}
}

func (c *Collector) ObserveStep(kind weather.Kind, step string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.steps.WithLabelValues(kind.String(), step, result).Inc()
	c.stepDuration.WithLabelValues(kind.String(), step).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveRows(kind weather.Kind, op string, rows int64) {
	c.rows.WithLabelValues(kind.String(), op).Add(float64(rows))
}

func (c *Collector) ObserveBackfill(processed, failed int) {
	c.backfillDays.WithLabelValues("ok").Add(float64(processed))
	c.backfillDays.WithLabelValues("error").Add(float64(failed))
}
