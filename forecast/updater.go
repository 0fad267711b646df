package forecast

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sartorproj/arimastream/metrics"
	"github.com/sartorproj/arimastream/timeseries"
)

// DefaultGapThreshold is how many steps past the last timestamp an
// observation may arrive before the steps in between count as missing.
const DefaultGapThreshold = 1.5

// Updater feeds timestamped observations to a Predictor and fills gaps in
// the stream with the model's own one-step predictions. It is not safe for
// concurrent use.
type Updater struct {
	predictor    *Predictor
	delta        timeseries.Delta
	gapThreshold float64
	maxFill      int
	logger       zerolog.Logger
	metrics      *metrics.Recorder
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithGapThreshold sets the gap threshold in steps.
func WithGapThreshold(steps float64) UpdaterOption {
	return func(u *Updater) { u.gapThreshold = steps }
}

// WithMaxFill bounds the fillers inserted for a single gap, 0 for no bound.
func WithMaxFill(n int) UpdaterOption {
	return func(u *Updater) { u.maxFill = n }
}

// WithUpdaterLogger sets the logger gaps are reported to.
func WithUpdaterLogger(l zerolog.Logger) UpdaterOption {
	return func(u *Updater) { u.logger = l }
}

// WithUpdaterMetrics records fillers and appended observations in r.
func WithUpdaterMetrics(r *metrics.Recorder) UpdaterOption {
	return func(u *Updater) { u.metrics = r }
}

// NewUpdater wraps p with the clock delta.
func NewUpdater(p *Predictor, delta timeseries.Delta, opts ...UpdaterOption) *Updater {
	u := &Updater{
		predictor:    p,
		delta:        delta,
		gapThreshold: DefaultGapThreshold,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.gapThreshold < 1 {
		u.gapThreshold = DefaultGapThreshold
	}
	return u
}

// Predictor returns the wrapped predictor.
func (u *Updater) Predictor() *Predictor { return u.predictor }

// Delta returns a copy of the clock.
func (u *Updater) Delta() timeseries.Delta { return u.delta }

// Append1 absorbs one observation taken at ts. Missing steps between the
// last timestamp and ts are filled with one-step predictions first. Returns
// the number of fillers inserted.
func (u *Updater) Append1(ts time.Time, x float64) int {
	filled := u.fill(ts)
	u.predictor.Append(x)
	u.delta.SetLatest(ts)
	u.metrics.RecordAppended(1)
	return filled
}

// AppendPredict absorbs one observation taken at ts and returns the one-step
// forecast made for it before it was known, after any gap filling.
func (u *Updater) AppendPredict(ts time.Time, x float64) (forecast float64, filled int) {
	filled = u.fill(ts)
	pending := u.predictor.Residual(x)
	_ = u.predictor.Commit(pending)
	u.delta.SetLatest(ts)
	u.metrics.RecordAppended(1)
	return pending.Forecast, filled
}

// Append absorbs a series in order and returns the total number of fillers.
func (u *Updater) Append(s *timeseries.Series) int {
	filled := 0
	for i, v := range s.Values {
		filled += u.Append1(s.Timestamps[i], v)
	}
	return filled
}

func (u *Updater) fill(ts time.Time) int {
	if u.delta.Step <= 0 {
		return 0
	}
	gap := u.delta.Steps(ts)
	filled := 0
	for u.delta.Steps(ts) > u.gapThreshold {
		if u.maxFill > 0 && filled >= u.maxFill {
			break
		}
		filler := u.predictor.Predict(1)[0]
		u.predictor.Append(filler)
		u.delta.Read()
		filled++
	}
	if filled > 0 {
		u.logger.Warn().
			Time("last", u.delta.Last).
			Time("observed", ts).
			Float64("steps", gap).
			Int("filled", filled).
			Msg("gap in observations filled with predictions")
		u.metrics.RecordGapFills(filled)
	}
	return filled
}

// Point is one forecast step.
type Point struct {
	Timestamp time.Time
	Value     float64
	Low       float64
	High      float64
}

// Forecast returns the next count forecasts with their timestamps and
// prediction intervals. The clock and predictor are left untouched.
func (u *Updater) Forecast(count int, confidence float64) ([]Point, error) {
	values := u.predictor.Predict(count)
	low, high, err := u.predictor.Intervals(values, confidence)
	if err != nil {
		return nil, err
	}
	timestamps := u.delta.Next(count)

	points := make([]Point, count)
	for i := range points {
		points[i] = Point{Timestamp: timestamps[i], Value: values[i], Low: low[i], High: high[i]}
	}
	return points, nil
}
