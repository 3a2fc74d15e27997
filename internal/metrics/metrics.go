// Package metrics exposes pipeline counters through a caller-supplied
// prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "truthindex"

// Recorder records run and stage outcomes.
type Recorder struct {
	runsStarted        prometheus.Counter
	runsFinished       *prometheus.CounterVec
	stageExecutions    *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	generationFailures prometheus.Counter
	runsReaped         prometheus.Counter
}

// NewRecorder registers the pipeline metrics on the given registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Audit runs picked up by a supervisor.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Audit runs reaching a terminal status.",
		}, []string{"status"}),
		stageExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Stage executions by stage and outcome (done, error, cached, blocked).",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of executed stages.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"stage"}),
		generationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Generation collaborator calls that failed or timed out.",
		}),
		runsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_reaped_total",
			Help:      "Stalled running runs reset to pending by the reaper.",
		}),
	}

	reg.MustRegister(r.runsStarted, r.runsFinished, r.stageExecutions,
		r.stageDuration, r.generationFailures, r.runsReaped)
	return r
}

// Nop returns a recorder backed by a private registry, for callers that
// do not export metrics.
func Nop() *Recorder {
	return NewRecorder(prometheus.NewRegistry())
}

// RunStarted counts a claimed run.
func (r *Recorder) RunStarted() {
	r.runsStarted.Inc()
}

// RunFinished counts a terminal status.
func (r *Recorder) RunFinished(status string) {
	r.runsFinished.WithLabelValues(status).Inc()
}

// StageExecuted counts a stage outcome and, for executed stages, its
// duration.
func (r *Recorder) StageExecuted(stage, outcome string, d time.Duration) {
	r.stageExecutions.WithLabelValues(stage, outcome).Inc()
	if outcome == "done" || outcome == "error" {
		r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// GenerationFailure counts a failed collaborator call.
func (r *Recorder) GenerationFailure() {
	r.generationFailures.Inc()
}

// RunReaped counts a stalled run reset by the reaper.
func (r *Recorder) RunReaped() {
	r.runsReaped.Inc()
}
