// Package metrics records search, forecasting and job metrics with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the Prometheus collectors. A nil *Recorder records nothing.
type Recorder struct {
	candidates    *prometheus.CounterVec
	fitDuration   *prometheus.HistogramVec
	bestCriterion *prometheus.GaugeVec
	gapFills      prometheus.Counter
	appended      prometheus.Counter
	predictions   *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	rmse          prometheus.Gauge
	stateBytes    prometheus.Gauge
}

// New creates a recorder registered with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		candidates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arimastream_search_candidates_total",
				Help: "Candidate orders attempted by the auto-order search",
			},
			[]string{"outcome"},
		),
		fitDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arimastream_fit_duration_seconds",
				Help:    "Wall time spent fitting a single candidate",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"outcome"},
		),
		bestCriterion: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "arimastream_best_criterion",
				Help: "Information criterion of the selected model",
			},
			[]string{"criterion"},
		),
		gapFills: f.NewCounter(prometheus.CounterOpts{
			Name: "arimastream_gap_fills_total",
			Help: "Synthetic observations inserted to heal timestamp gaps",
		}),
		appended: f.NewCounter(prometheus.CounterOpts{
			Name: "arimastream_observations_appended_total",
			Help: "Real observations appended to the predictor",
		}),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arimastream_predictions_written_total",
				Help: "Prediction records written to the sink",
			},
			[]string{"set"},
		),
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arimastream_job_runs_total",
				Help: "Job invocations by mode and result",
			},
			[]string{"mode", "result"},
		),
		jobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arimastream_job_duration_seconds",
				Help:    "Duration of job invocations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		rmse: f.NewGauge(prometheus.GaugeOpts{
			Name: "arimastream_validation_rmse",
			Help: "Root mean squared error on the validation split of the last training run",
		}),
		stateBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "arimastream_state_bytes",
			Help: "Size of the last persisted job state",
		}),
	}
}

// RecordCandidate records one candidate fit and its outcome.
func (r *Recorder) RecordCandidate(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.candidates.WithLabelValues(outcome).Inc()
	r.fitDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordBest records the criterion value of the selected model.
func (r *Recorder) RecordBest(criterion string, value float64) {
	if r == nil {
		return
	}
	r.bestCriterion.WithLabelValues(criterion).Set(value)
}

// RecordGapFills records synthetic gap fillers.
func (r *Recorder) RecordGapFills(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.gapFills.Add(float64(n))
}

// RecordAppended records real observations appended to the predictor.
func (r *Recorder) RecordAppended(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.appended.Add(float64(n))
}

// RecordPredictions records prediction records written to a set.
func (r *Recorder) RecordPredictions(set string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.predictions.WithLabelValues(set).Add(float64(n))
}

// RecordJob records a job invocation.
func (r *Recorder) RecordJob(mode, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.jobRuns.WithLabelValues(mode, result).Inc()
	r.jobDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordRMSE records the validation error of a training run.
func (r *Recorder) RecordRMSE(v float64) {
	if r == nil {
		return
	}
	r.rmse.Set(v)
}

// RecordStateSize records the encoded size of the persisted state.
func (r *Recorder) RecordStateSize(n int) {
	if r == nil {
		return
	}
	r.stateBytes.Set(float64(n))
}
