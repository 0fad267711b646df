// Package job runs one forecasting job invocation.
//
// The first run reads everything the source holds, searches for the best
// order on the leading share of it and streams the rest through the new
// predictor as validation. Later runs restore the predictor from the stored
// state and absorb only what arrived since. Every run ends by rewriting the
// future forecast curve and saving the state; nothing is saved when a run
// fails.
package job

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sartorproj/arimastream/autoarima"
	"github.com/sartorproj/arimastream/forecast"
	"github.com/sartorproj/arimastream/metrics"
	"github.com/sartorproj/arimastream/sink"
	"github.com/sartorproj/arimastream/source"
	"github.com/sartorproj/arimastream/state"
	"github.com/sartorproj/arimastream/timeseries"
)

// ErrEmptySource is returned when a first run finds no observations to train on.
var ErrEmptySource = errors.New("source returned no observations")

// Mode tells whether a run trained a new model or resumed a stored one.
type Mode string

const (
	ModeTrain  Mode = "train"
	ModeResume Mode = "resume"
)

// Config holds the job parameters.
type Config struct {
	Search          autoarima.Config
	BatchSize       int
	TrainFraction   float64 // share of the first read used for the search
	Ahead           int     // horizons written per observation and length of the future curve
	Confidence      float64
	DeltaSampleSize int
	GapThreshold    float64
	MaxFill         int
}

// DefaultConfig returns the default job configuration.
func DefaultConfig() Config {
	return Config{
		Search:          autoarima.DefaultConfig(),
		BatchSize:       source.DefaultBatchSize,
		TrainFraction:   0.75,
		Ahead:           5,
		Confidence:      forecast.DefaultConfidence,
		DeltaSampleSize: timeseries.DefaultDeltaSampleSize,
		GapThreshold:    forecast.DefaultGapThreshold,
	}
}

// Report summarises a finished run.
type Report struct {
	RunID        string
	Mode         Mode
	Model        state.ModelInfo
	Observations int
	Filled       int
	RMSE         float64 // one-step error over this run's observations, NaN if none
	Future       []forecast.Point
}

// Job wires a source, a state store, a predictions writer and a trainer.
type Job struct {
	reader  source.Reader
	store   state.Store
	writer  *sink.Writer
	trainer autoarima.Trainer
	cfg     Config

	logger  zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	newID   func() string
}

// Option configures a Job.
type Option func(*Job)

// WithLogger sets the job logger.
func WithLogger(l zerolog.Logger) Option {
	return func(j *Job) { j.logger = l }
}

// WithMetrics records runs in r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(j *Job) { j.metrics = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// WithRunID replaces the random run identifiers.
func WithRunID(newID func() string) Option {
	return func(j *Job) { j.newID = newID }
}

// New creates a job. t is only used when no state has been stored yet.
func New(reader source.Reader, store state.Store, writer *sink.Writer, t autoarima.Trainer, cfg Config, opts ...Option) *Job {
	j := &Job{
		reader:  reader,
		store:   store,
		writer:  writer,
		trainer: t,
		cfg:     cfg,
		logger:  zerolog.Nop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.cfg.TrainFraction <= 0 || j.cfg.TrainFraction > 1 {
		j.cfg.TrainFraction = 0.75
	}
	if j.cfg.Confidence <= 0 || j.cfg.Confidence >= 1 {
		j.cfg.Confidence = forecast.DefaultConfidence
	}
	return j
}

// Run performs one invocation: train or resume, stream new observations,
// rewrite the future curve and save the state.
func (j *Job) Run(ctx context.Context) (report *Report, err error) {
	start := j.now()
	report = &Report{RunID: j.newID(), Mode: ModeTrain, RMSE: math.NaN()}
	logger := j.logger.With().Str("run", report.RunID).Logger()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		j.metrics.RecordJob(string(report.Mode), result, j.now().Sub(start))
	}()

	prev, err := j.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load state: %w", err)
	}

	var (
		updater  *forecast.Updater
		incoming *timeseries.Series
		runCount int
	)
	if prev == nil {
		updater, incoming, report.Model, err = j.train(ctx, logger)
		if err != nil {
			return report, err
		}
	} else {
		report.Mode = ModeResume
		report.Model = prev.Model
		runCount = prev.Run.Count
		updater, incoming, err = j.resume(ctx, prev, logger)
		if err != nil {
			return report, err
		}
	}
	logger = logger.With().Str("mode", string(report.Mode)).Logger()

	report.Observations = incoming.Len()
	report.Filled, report.RMSE, err = j.absorb(ctx, updater, incoming)
	if err != nil {
		return report, err
	}
	if report.Mode == ModeTrain {
		report.Model.RMSE = report.RMSE
		if !math.IsNaN(report.RMSE) {
			j.metrics.RecordRMSE(report.RMSE)
		}
	}

	report.Future, err = j.writeFuture(ctx, updater)
	if err != nil {
		return report, err
	}

	next := &state.JobState{
		Predictor: updater.Predictor().State(),
		Delta:     updater.Delta(),
		Reader:    j.reader.Position(),
		Model:     report.Model,
		Run:       state.RunInfo{ID: report.RunID, Count: runCount + 1, Finished: j.now()},
	}
	if j.metrics != nil {
		if blob, err := state.Encode(next); err == nil {
			j.metrics.RecordStateSize(len(blob))
		}
	}
	if err := j.store.Save(ctx, next); err != nil {
		return report, fmt.Errorf("save state: %w", err)
	}

	logger.Info().
		Stringer("order", report.Model.Order).
		Int("observations", report.Observations).
		Int("filled", report.Filled).
		Float64("rmse", report.RMSE).
		Dur("elapsed", j.now().Sub(start)).
		Msg("job run finished")
	return report, nil
}

// train searches the leading share of the source and returns an updater
// positioned at its end together with the remaining validation observations.
func (j *Job) train(ctx context.Context, logger zerolog.Logger) (*forecast.Updater, *timeseries.Series, state.ModelInfo, error) {
	var info state.ModelInfo

	series, err := source.ReadAll(ctx, j.reader, j.cfg.BatchSize)
	if err != nil {
		return nil, nil, info, fmt.Errorf("read observations: %w", err)
	}
	if series.Len() == 0 {
		return nil, nil, info, ErrEmptySource
	}
	trainPart, validation := series.Split(j.cfg.TrainFraction)
	logger.Info().
		Int("train", trainPart.Len()).
		Int("validation", validation.Len()).
		Msg("training new model")

	searcher := autoarima.NewSearcher(j.trainer,
		autoarima.WithLogger(logger.With().Str("component", "search").Logger()),
		autoarima.WithMetrics(j.metrics),
		autoarima.WithClock(j.now),
	)
	result, err := searcher.Search(ctx, trainPart, j.cfg.Search)
	if err != nil {
		return nil, nil, info, fmt.Errorf("search: %w", err)
	}
	model := result.Model

	p, err := forecast.NewPredictor(model, trainPart.Values)
	if err != nil {
		return nil, nil, info, fmt.Errorf("build predictor: %w", err)
	}
	delta, err := timeseries.EstimateDelta(trainPart.Timestamps, j.cfg.DeltaSampleSize)
	if err != nil {
		return nil, nil, info, err
	}

	o := model.Order
	if lb := model.LjungBox(10); lb != nil {
		event := logger.Info()
		if lb.PValue < 0.05 {
			event = logger.Warn()
		}
		event.Stringer("order", o).
			Float64("statistic", lb.Statistic).
			Float64("p_value", lb.PValue).
			Int("lags", lb.Lags).
			Msg("ljung-box residual diagnostics")
	}

	info = state.ModelInfo{
		Order:     o,
		Criterion: string(result.Criterion),
		Value:     result.Value,
		TrainedAt: j.now(),
	}
	return j.updater(p, delta, logger), validation, info, nil
}

func (j *Job) resume(ctx context.Context, prev *state.JobState, logger zerolog.Logger) (*forecast.Updater, *timeseries.Series, error) {
	p, err := forecast.FromState(prev.Predictor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", state.ErrMalformedState, err)
	}
	j.reader.Seek(prev.Reader)
	series, err := source.ReadAll(ctx, j.reader, j.cfg.BatchSize)
	if err != nil {
		return nil, nil, fmt.Errorf("read observations: %w", err)
	}
	return j.updater(p, prev.Delta, logger), series, nil
}

func (j *Job) updater(p *forecast.Predictor, delta timeseries.Delta, logger zerolog.Logger) *forecast.Updater {
	return forecast.NewUpdater(p, delta,
		forecast.WithGapThreshold(j.cfg.GapThreshold),
		forecast.WithMaxFill(j.cfg.MaxFill),
		forecast.WithUpdaterLogger(logger.With().Str("component", "updater").Logger()),
		forecast.WithUpdaterMetrics(j.metrics),
	)
}

// absorb feeds each observation to u, writing the forecasts made after it to
// the ahead sets, and returns the fillers inserted and the one-step RMSE.
func (j *Job) absorb(ctx context.Context, u *forecast.Updater, series *timeseries.Series) (int, float64, error) {
	filled := 0
	predicted := &timeseries.Series{}
	for i, v := range series.Values {
		ts := series.Timestamps[i]
		f, n := u.AppendPredict(ts, v)
		filled += n
		predicted.Append(ts, f)

		if j.cfg.Ahead <= 0 {
			continue
		}
		points, err := u.Forecast(j.cfg.Ahead, j.cfg.Confidence)
		if err != nil {
			return filled, math.NaN(), err
		}
		for h, pt := range points {
			if err := j.writer.WriteAhead(ctx, record(pt), h+1); err != nil {
				return filled, math.NaN(), fmt.Errorf("write ahead: %w", err)
			}
		}
	}
	return filled, forecast.RMSE(series, predicted), nil
}

func (j *Job) writeFuture(ctx context.Context, u *forecast.Updater) ([]forecast.Point, error) {
	if err := j.writer.ClearFuture(ctx); err != nil {
		return nil, fmt.Errorf("clear future: %w", err)
	}
	var points []forecast.Point
	if j.cfg.Ahead > 0 {
		var err error
		points, err = u.Forecast(j.cfg.Ahead, j.cfg.Confidence)
		if err != nil {
			return nil, err
		}
	}
	for _, pt := range points {
		if err := j.writer.WriteFuture(ctx, record(pt)); err != nil {
			return nil, fmt.Errorf("write future: %w", err)
		}
	}
	if err := j.writer.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush predictions: %w", err)
	}
	return points, nil
}

func record(pt forecast.Point) sink.Record {
	return sink.Record{Timestamp: pt.Timestamp, Value: pt.Value, Low: pt.Low, High: pt.High}
}
