package forecast

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sartorproj/arimastream/arima"
)

var (
	// ErrStalePending is returned when committing a Pending computed before
	// another observation was committed.
	ErrStalePending = errors.New("pending observation is stale")
	// ErrInvalidState is returned for predictor state that breaks its invariants.
	ErrInvalidState = errors.New("invalid predictor state")
)

// Predictor reproduces a fitted model's forecasts from the last
// D + max(len(AR), len(MA)) observations and residuals:
//
//	z_t = Intercept + sum(AR_i z_{t-i}) + sum(MA_j e_{t-j})
//
// where z is the data after D differences. Future residuals are taken as zero.
// A Predictor is not safe for concurrent use.
type Predictor struct {
	intercept float64
	ar        []float64
	ma        []float64
	d         int
	variance  float64

	data      *window
	residuals *window
	seq       uint64
}

// NewPredictor builds a predictor from a fitted snapshot and the data it was
// fitted on, keeping only the trailing window.
func NewPredictor(model *arima.Trained, data []float64) (*Predictor, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no model", ErrInvalidState)
	}
	if len(data) != len(model.Residuals) {
		return nil, fmt.Errorf("%w: %d observations for %d residuals", ErrInvalidState, len(data), len(model.Residuals))
	}
	return FromState(State{
		Data:      data,
		Residuals: model.Residuals,
		Intercept: model.Intercept,
		AR:        model.AR,
		MA:        model.MA,
		D:         model.D,
		Variance:  model.Variance,
	})
}

// MaxSize is the number of trailing observations the recursion needs.
func (p *Predictor) MaxSize() int {
	return p.d + max(len(p.ar), len(p.ma))
}

// Len returns the number of observations currently held.
func (p *Predictor) Len() int {
	return p.data.len()
}

// Variance returns the residual variance of the fitted model.
func (p *Predictor) Variance() float64 {
	return p.variance
}

// Predict returns the next count forecasts without changing the predictor.
func (p *Predictor) Predict(count int) []float64 {
	if count <= 0 {
		return nil
	}
	data := slices.Grow(p.data.snapshot(), count)
	residuals := slices.Grow(p.residuals.snapshot(), count)

	out := make([]float64, count)
	for i := range out {
		out[i] = p.next(data, residuals)
		data = append(data, out[i])
		residuals = append(residuals, 0)
	}
	return out
}

// next computes the one-step forecast following data and residuals.
func (p *Predictor) next(data, residuals []float64) float64 {
	// levels[k] is data differenced k times.
	levels := make([][]float64, p.d+1)
	levels[0] = data
	for k := 1; k <= p.d; k++ {
		prev := levels[k-1]
		if len(prev) < 2 {
			levels[k] = nil
			continue
		}
		cur := make([]float64, len(prev)-1)
		for i := range cur {
			cur[i] = prev[i+1] - prev[i]
		}
		levels[k] = cur
	}

	z := levels[p.d]
	forecast := p.intercept
	for i, phi := range p.ar {
		if idx := len(z) - 1 - i; idx >= 0 {
			forecast += phi * z[idx]
		}
	}
	for j, theta := range p.ma {
		if idx := len(residuals) - 1 - j; idx >= 0 {
			forecast += theta * residuals[idx]
		}
	}

	for k := p.d - 1; k >= 0; k-- {
		if n := len(levels[k]); n > 0 {
			forecast += levels[k][n-1]
		}
	}
	return forecast
}

// Pending is an observation with its one-step forecast error, computed
// against the predictor state at the time Residual was called.
type Pending struct {
	Observation float64
	Forecast    float64
	Residual    float64
	seq         uint64
}

// Residual computes the one-step forecast error of x against the current
// state. The predictor is not changed until the result is committed.
func (p *Predictor) Residual(x float64) Pending {
	f := p.next(p.data.values, p.residuals.values)
	return Pending{Observation: x, Forecast: f, Residual: x - f, seq: p.seq}
}

// Commit appends a pending observation and its residual. A Pending computed
// before a later commit is rejected with ErrStalePending.
func (p *Predictor) Commit(pending Pending) error {
	if pending.seq != p.seq {
		return ErrStalePending
	}
	p.data.push(pending.Observation)
	p.residuals.push(pending.Residual)
	p.seq++
	p.Shrink()
	return nil
}

// Append absorbs new observations in order.
func (p *Predictor) Append(xs ...float64) {
	for _, x := range xs {
		// A fresh Pending is never stale.
		_ = p.Commit(p.Residual(x))
	}
}

// AppendPredict absorbs new observations and returns the one-step forecast
// each of them had before it was known.
func (p *Predictor) AppendPredict(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		pending := p.Residual(x)
		out[i] = pending.Forecast
		_ = p.Commit(pending)
	}
	return out
}

// Shrink drops everything but the last MaxSize observations and residuals.
func (p *Predictor) Shrink() {
	p.data.trim()
	p.residuals.trim()
}

// State is the persistable form of a Predictor.
type State struct {
	Data      []float64 `msgpack:"data" json:"data"`
	Residuals []float64 `msgpack:"residuals" json:"residuals"`
	Intercept float64   `msgpack:"intercept" json:"intercept"`
	AR        []float64 `msgpack:"ar" json:"ar"`
	MA        []float64 `msgpack:"ma" json:"ma"`
	D         int       `msgpack:"d" json:"d"`
	Variance  float64   `msgpack:"variance" json:"variance"`
}

// State returns a copy of the predictor state.
func (p *Predictor) State() State {
	return State{
		Data:      p.data.snapshot(),
		Residuals: p.residuals.snapshot(),
		Intercept: p.intercept,
		AR:        slices.Clone(p.ar),
		MA:        slices.Clone(p.ma),
		D:         p.d,
		Variance:  p.variance,
	}
}

// FromState restores a predictor. Oversized buffers are shrunk.
func FromState(s State) (*Predictor, error) {
	if len(s.Data) != len(s.Residuals) {
		return nil, fmt.Errorf("%w: %d observations for %d residuals", ErrInvalidState, len(s.Data), len(s.Residuals))
	}
	if s.D < 0 {
		return nil, fmt.Errorf("%w: negative differencing order %d", ErrInvalidState, s.D)
	}

	p := &Predictor{
		intercept: s.Intercept,
		ar:        slices.Clone(s.AR),
		ma:        slices.Clone(s.MA),
		d:         s.D,
		variance:  s.Variance,
	}
	size := p.MaxSize()
	p.data = newWindow(size, s.Data)
	p.residuals = newWindow(size, s.Residuals)
	return p, nil
}
