// Package observability holds the pipeline's Prometheus metrics and
// OpenTelemetry tracer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes.
const (
	OutcomePersisted = "persisted"
	OutcomeNoop      = "noop"
	OutcomeFailed    = "failed"
)

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	Runs         *prometheus.CounterVec
	StageSeconds *prometheus.HistogramVec
	Speakers     *prometheus.CounterVec
	Fallbacks    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcriber_pipeline_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		StageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transcriber_stage_duration_seconds",
				Help:    "Time spent reaching each pipeline state",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"stage"},
		),
		Speakers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcriber_speakers_total",
				Help: "Diarised speakers by identification result",
			},
			[]string{"result"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcriber_device_fallbacks_total",
				Help: "Model calls retried on the fallback device",
			},
			[]string{"op"},
		),
	}
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StageDone(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Speaker(result string) {
	if m == nil {
		return
	}
	m.Speakers.WithLabelValues(result).Inc()
}

func (m *Metrics) Fallback(op string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(op).Inc()
}
