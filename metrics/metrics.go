// Package metrics holds the Prometheus instruments of a pipeline run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task outcomes.
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics records nothing.
type Metrics struct {
	TasksTotal         *prometheus.CounterVec
	StageFailuresTotal *prometheus.CounterVec
	RotationsTotal     prometheus.Counter
	SuggestionsTotal   *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
}

// New registers the instruments on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		TasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seo_tasks_total",
			Help: "Keyword tasks processed, by tenant and outcome",
		}, []string{"tenant", "outcome"}),
		StageFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seo_stage_failures_total",
			Help: "Failed pipeline stages, including degraded optional stages",
		}, []string{"stage"}),
		RotationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "seo_credential_rotations_total",
			Help: "Credential rotations after quota or auth failures",
		}),
		SuggestionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seo_suggestions_total",
			Help: "Growth suggestions appended to tenant queues",
		}, []string{"tenant"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seo_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
	}
}

func (m *Metrics) IncTask(tenant, outcome string) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(tenant, outcome).Inc()
}

func (m *Metrics) IncStageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailuresTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncRotation() {
	if m == nil {
		return
	}
	m.RotationsTotal.Inc()
}

func (m *Metrics) AddSuggestions(tenant string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SuggestionsTotal.WithLabelValues(tenant).Add(float64(n))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
