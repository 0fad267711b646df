package autoarima

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sartorproj/arimastream/arima"
	"github.com/sartorproj/arimastream/metrics"
	"github.com/sartorproj/arimastream/stats"
	"github.com/sartorproj/arimastream/timeseries"
)

// ErrNoModel is returned when no candidate order produced a usable model.
var ErrNoModel = errors.New("no candidate model could be fitted")

// Trainer fits a single candidate order. Implementations must return within
// roughly timeout (plus any termination grace) when timeout is positive, with
// an error wrapping context.DeadlineExceeded when the timeout expired.
type Trainer interface {
	Train(ctx context.Context, values []float64, order arima.Order, opts arima.Options, timeout time.Duration) (*arima.Trained, error)
}

// Config holds configuration for the auto-order search.
type Config struct {
	Bounds      Bounds
	Criterion   arima.Criterion // default: aic
	StationTest string          // "kpss" or "adf" (default: "kpss")
	TimeLimit   time.Duration   // whole-search budget, 0 for none
	FitOptions  arima.Options
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		Bounds:      DefaultBounds(),
		Criterion:   arima.AIC,
		StationTest: stats.StationTestKPSS,
	}
}

// Result summarises a finished search.
type Result struct {
	Model      *arima.Trained
	Criterion  arima.Criterion
	Value      float64
	Candidates int
	Successes  int
	Failures   int
	Skipped    int
	Elapsed    time.Duration
}

// Searcher runs the grid search, one candidate at a time.
type Searcher struct {
	trainer Trainer
	logger  zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger used for per-candidate progress.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithMetrics records candidate outcomes in r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Searcher) { s.metrics = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

// NewSearcher creates a searcher fitting candidates with t.
func NewSearcher(t Trainer, opts ...Option) *Searcher {
	s := &Searcher{
		trainer: t,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search estimates the differencing orders, enumerates the candidate grid and
// fits every candidate in weight order, keeping the best by cfg.Criterion.
// With a time limit each candidate gets an equal share of the remaining
// budget; candidates left when the budget or ctx runs out are skipped.
func (s *Searcher) Search(ctx context.Context, series *timeseries.Series, cfg Config) (*Result, error) {
	if cfg.Criterion == "" {
		cfg.Criterion = arima.AIC
	}
	if cfg.StationTest == "" {
		cfg.StationTest = stats.StationTestKPSS
	}

	start := s.now()
	var deadline time.Time
	if cfg.TimeLimit > 0 {
		deadline = start.Add(cfg.TimeLimit)
	}

	bounds := EstimateDifferencing(series, cfg.Bounds, cfg.StationTest)
	orders := Grid(bounds)
	selector := NewSelector(cfg.Criterion)
	result := &Result{Criterion: cfg.Criterion, Candidates: len(orders)}

	s.logger.Info().
		Int("candidates", len(orders)).
		Str("criterion", string(cfg.Criterion)).
		Dur("time_limit", cfg.TimeLimit).
		Msg("starting order search")

	for i, order := range orders {
		if err := ctx.Err(); err != nil {
			result.Skipped = len(orders) - i
			s.logger.Warn().Err(err).Int("skipped", result.Skipped).Msg("search cancelled")
			break
		}

		var timeout time.Duration
		if !deadline.IsZero() {
			remaining := deadline.Sub(s.now())
			if remaining <= 0 {
				result.Skipped = len(orders) - i
				s.logger.Warn().Int("skipped", result.Skipped).Msg("search time limit reached")
				break
			}
			timeout = remaining / time.Duration(len(orders)-i)
		}

		fitStart := s.now()
		model, err := s.trainer.Train(ctx, series.Values, order, cfg.FitOptions, timeout)
		elapsed := s.now().Sub(fitStart)
		if err != nil {
			selector.Fail(order, err)
			outcome := "failed"
			if errors.Is(err, context.DeadlineExceeded) {
				outcome = "timeout"
			}
			s.metrics.RecordCandidate(outcome, elapsed)
			s.logger.Debug().Err(err).Stringer("order", order).Dur("elapsed", elapsed).Msg("candidate failed")
			continue
		}

		improved := selector.Add(model)
		if v, ok := model.Criterion(cfg.Criterion); ok {
			s.metrics.RecordCandidate("fitted", elapsed)
			s.logger.Debug().
				Stringer("order", order).
				Float64(string(cfg.Criterion), v).
				Bool("best", improved).
				Dur("elapsed", elapsed).
				Msg("candidate fitted")
		} else {
			s.metrics.RecordCandidate("failed", elapsed)
		}
	}

	result.Successes = selector.Successes()
	result.Failures = selector.Failures()
	result.Elapsed = s.now().Sub(start)

	best, value, ok := selector.Best()
	if !ok {
		if o, err := selector.LastFailure(); err != nil {
			return result, fmt.Errorf("%w: %d candidates failed, last %s: %w", ErrNoModel, result.Failures, o, err)
		}
		return result, fmt.Errorf("%w: %d candidates, %d skipped", ErrNoModel, result.Candidates, result.Skipped)
	}
	result.Model = best
	result.Value = value
	s.metrics.RecordBest(string(cfg.Criterion), value)

	s.logger.Info().
		Stringer("order", best.Order).
		Float64(string(cfg.Criterion), value).
		Int("successes", result.Successes).
		Int("failures", result.Failures).
		Int("skipped", result.Skipped).
		Dur("elapsed", result.Elapsed).
		Msg("order search finished")
	return result, nil
}
