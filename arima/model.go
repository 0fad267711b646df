package arima

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/arimastream/stats"
	"github.com/sartorproj/arimastream/timeseries"
)

var (
	// ErrNotFitted is returned when a model is used before Fit succeeded.
	ErrNotFitted = errors.New("model must be fitted before prediction")
	// ErrInsufficientData is returned when the series is too short for the order.
	ErrInsufficientData = errors.New("insufficient data points for the specified order")
)

const (
	defaultMaxIter = 200
	coeffBound     = 0.99
)

// Options tune a single fit.
type Options struct {
	// OOBSize holds out that many trailing observations from estimation and
	// scores the model by its one-step errors on them.
	OOBSize int `msgpack:"oob_size" json:"oob_size"`
	// MaxIter bounds the optimizer iterations (default 200).
	MaxIter int `msgpack:"max_iter" json:"max_iter"`
}

// Model represents a seasonal ARIMA model in mean form:
//
//	w_t - mu = sum(phi_i (w_{t-i} - mu)) + sum(Phi_i (w_{t-im} - mu)) + sum(theta_j e_{t-j}) + sum(Theta_j e_{t-jm}) + e_t
//
// where w is the series after d regular and D seasonal differences.
type Model struct {
	Order     Order
	Options   Options
	ARCoeffs  []float64 // phi
	MACoeffs  []float64 // theta
	SARCoeffs []float64 // Phi
	SMACoeffs []float64 // Theta
	Mean      float64   // mean of the differenced series
	Variance  float64   // residual variance
	AIC       float64
	AICc      float64
	BIC       float64
	HQIC      float64
	OOB       float64 // NaN unless Options.OOBSize > 0
	LogLik    float64

	fitted     bool
	data       []float64
	diffData   []float64
	residuals  []float64
	fittedVals []float64
	start      int // first conditioned index of diffData
	end        int // end of the estimation window in diffData
}

// term is one lagged coefficient, either autoregressive or moving average.
type term struct {
	lag int
	ma  bool
}

// New creates an unfitted model with the given order.
func New(order Order) *Model {
	return &Model{
		Order:     order,
		ARCoeffs:  make([]float64, order.P),
		MACoeffs:  make([]float64, order.Q),
		SARCoeffs: make([]float64, order.SP),
		SMACoeffs: make([]float64, order.SQ),
		OOB:       math.NaN(),
	}
}

// Fit fits a model of the given order to values.
func Fit(values []float64, order Order, opts Options) (*Model, error) {
	m := New(order)
	m.Options = opts
	if err := m.Fit(timeseries.New(values)); err != nil {
		return nil, err
	}
	return m, nil
}

// Fit estimates the model coefficients from the series.
func (m *Model) Fit(series *timeseries.Series) error {
	o := m.Order
	if err := o.Validate(); err != nil {
		return err
	}
	if m.Options.OOBSize < 0 {
		return fmt.Errorf("negative out-of-bag size %d", m.Options.OOBSize)
	}

	diffSeries := series.DiffN(o.D)
	for i := 0; i < o.SD; i++ {
		diffSeries = diffSeries.SeasonalDiff(o.M)
	}

	m.start = max(o.P, o.Q, o.SP*o.M, o.SQ*o.M)
	m.end = diffSeries.Len() - m.Options.OOBSize
	if m.end-m.start < o.NumParams()+1 {
		return fmt.Errorf("%w: order %s with %d observations", ErrInsufficientData, o, series.Len())
	}

	m.data = slices.Clone(series.Values)
	m.diffData = diffSeries.Values

	m.estimate()
	m.filterAll()
	m.calculateIC()

	m.fitted = true
	return nil
}

func (m *Model) terms() []term {
	o := m.Order
	terms := make([]term, 0, o.P+o.SP+o.Q+o.SQ)
	for i := 1; i <= o.P; i++ {
		terms = append(terms, term{lag: i})
	}
	for i := 1; i <= o.SP; i++ {
		terms = append(terms, term{lag: i * o.M})
	}
	for i := 1; i <= o.Q; i++ {
		terms = append(terms, term{lag: i, ma: true})
	}
	for i := 1; i <= o.SQ; i++ {
		terms = append(terms, term{lag: i * o.M, ma: true})
	}
	return terms
}

func (m *Model) params() []float64 {
	return slices.Concat(m.ARCoeffs, m.SARCoeffs, m.MACoeffs, m.SMACoeffs)
}

func (m *Model) setParams(theta []float64) {
	o := m.Order
	copy(m.ARCoeffs, theta[:o.P])
	copy(m.SARCoeffs, theta[o.P:o.P+o.SP])
	copy(m.MACoeffs, theta[o.P+o.SP:o.P+o.SP+o.Q])
	copy(m.SMACoeffs, theta[o.P+o.SP+o.Q:])
}

// css runs the conditional residual recursion and returns the sum of squared
// residuals from start onwards. Residuals before start are zero.
func css(y []float64, mu float64, terms []term, theta []float64, start int, res []float64) float64 {
	sse := 0.0
	for t := range y {
		if t < start {
			res[t] = 0
			continue
		}
		pred := mu
		for j, tm := range terms {
			i := t - tm.lag
			if i < 0 {
				continue
			}
			if tm.ma {
				pred += theta[j] * res[i]
			} else {
				pred += theta[j] * (y[i] - mu)
			}
		}
		res[t] = y[t] - pred
		sse += res[t] * res[t]
	}
	return sse
}

// estimate minimises the conditional sum of squares with momentum gradient
// descent on the standardised estimation window.
func (m *Model) estimate() {
	y := m.diffData[:m.end]
	m.Mean = stat.Mean(y, nil)

	terms := m.terms()
	if len(terms) == 0 {
		return
	}

	scale := stat.StdDev(y, nil)
	if scale == 0 || math.IsNaN(scale) {
		scale = 1
	}
	z := make([]float64, len(y))
	for i, v := range y {
		z[i] = (v - m.Mean) / scale
	}

	theta := m.initialParams(z)
	maxIter := m.Options.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}

	const (
		momentum  = 0.9
		decay     = 0.99
		tolerance = 1e-10
	)
	learningRate := 0.05
	n := float64(len(z))

	velocity := make([]float64, len(theta))
	grad := make([]float64, len(theta))
	res := make([]float64, len(z))
	best := slices.Clone(theta)
	bestSSE := math.Inf(1)
	prevSSE := math.Inf(1)
	noImprove := 0

	for iter := 0; iter < maxIter; iter++ {
		sse := css(z, 0, terms, theta, m.start, res)
		if sse < bestSSE {
			bestSSE = sse
			copy(best, theta)
			noImprove = 0
		} else {
			noImprove++
		}
		if noImprove > 20 || math.Abs(prevSSE-sse) < tolerance*(1+sse) {
			break
		}
		prevSSE = sse

		clear(grad)
		for t := m.start; t < len(z); t++ {
			for j, tm := range terms {
				i := t - tm.lag
				if i < 0 {
					continue
				}
				x := z[i]
				if tm.ma {
					x = res[i]
				}
				grad[j] -= 2 * res[t] * x
			}
		}

		for j := range theta {
			velocity[j] = momentum*velocity[j] + learningRate*grad[j]/n
			theta[j] = clamp(theta[j]-velocity[j], coeffBound)
		}
		learningRate *= decay
	}

	m.setParams(best)
}

func (m *Model) initialParams(z []float64) []float64 {
	o := m.Order
	theta := make([]float64, 0, o.P+o.SP+o.Q+o.SQ)
	series := timeseries.New(z)

	phi := stats.YuleWalker(series, o.P)
	for i := 0; i < o.P; i++ {
		v := 0.0
		if i < len(phi) {
			v = clamp(phi[i], coeffBound)
		}
		theta = append(theta, v)
	}

	if o.SP > 0 {
		acf := stats.ACF(series, o.SP*o.M)
		for i := 1; i <= o.SP; i++ {
			v := 0.0
			if i*o.M < len(acf) {
				v = clamp(0.5*acf[i*o.M], coeffBound)
			}
			theta = append(theta, v)
		}
	}

	for i := 0; i < o.Q+o.SQ; i++ {
		theta = append(theta, 0.1)
	}
	return theta
}

// filterAll computes residuals and fitted values over the whole differenced
// series, including any held-out tail.
func (m *Model) filterAll() {
	n := len(m.diffData)
	m.residuals = make([]float64, n)
	css(m.diffData, m.Mean, m.terms(), m.params(), m.start, m.residuals)

	m.fittedVals = make([]float64, n)
	floats.SubTo(m.fittedVals, m.diffData, m.residuals)
}

func (m *Model) calculateIC() {
	window := m.residuals[m.start:m.end]
	count := len(window)
	k := m.Order.NumParams()

	sse := floats.Dot(window, window)
	m.Variance = sse / float64(count-k)

	sigma2 := math.Max(sse/float64(count), 1e-12)
	m.LogLik = -float64(count) / 2 * (math.Log(2*math.Pi) + math.Log(sigma2) + 1)

	ic := stats.CalculateIC(m.LogLik, count, k)
	m.AIC, m.AICc, m.BIC, m.HQIC = ic.AIC, ic.AICc, ic.BIC, ic.HQIC

	m.OOB = math.NaN()
	if tail := m.residuals[m.end:]; len(tail) > 0 {
		m.OOB = floats.Dot(tail, tail) / float64(len(tail))
	}
}

// Predict generates forecasts for the specified number of steps ahead.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	n := len(m.diffData)
	ext := append(slices.Clone(m.diffData), make([]float64, steps)...)
	res := append(slices.Clone(m.residuals), make([]float64, steps)...)
	terms := m.terms()
	theta := m.params()

	for t := n; t < n+steps; t++ {
		pred := m.Mean
		for j, tm := range terms {
			i := t - tm.lag
			if i < 0 {
				continue
			}
			if tm.ma {
				pred += theta[j] * res[i]
			} else {
				pred += theta[j] * (ext[i] - m.Mean)
			}
		}
		ext[t] = pred
	}

	return integrate(ext[n:], m.data, m.Order), nil
}

// integrate undoes D seasonal and then d regular differences of forecasts
// made on the differenced scale.
func integrate(forecasts, data []float64, o Order) []float64 {
	levels := make([][]float64, o.D+1)
	levels[0] = data
	for i := 1; i <= o.D; i++ {
		levels[i] = timeseries.New(levels[i-1]).Diff().Values
	}
	seasonal := make([][]float64, o.SD+1)
	seasonal[0] = levels[o.D]
	for i := 1; i <= o.SD; i++ {
		seasonal[i] = timeseries.New(seasonal[i-1]).SeasonalDiff(o.M).Values
	}

	result := slices.Clone(forecasts)
	for i := o.SD; i >= 1; i-- {
		hist := seasonal[i-1]
		ext := append(slices.Clone(hist), result...)
		for t := len(hist); t < len(ext); t++ {
			if t-o.M >= 0 {
				ext[t] += ext[t-o.M]
			}
		}
		result = ext[len(hist):]
	}
	for i := o.D; i >= 1; i-- {
		hist := levels[i-1]
		prev := 0.0
		if len(hist) > 0 {
			prev = hist[len(hist)-1]
		}
		for t := range result {
			result[t] += prev
			prev = result[t]
		}
	}
	return result
}

// Residuals returns the residuals on the differenced scale.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	return slices.Clone(m.residuals)
}

// FittedValues returns the one-step fitted values on the differenced scale.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	return slices.Clone(m.fittedVals)
}

// Summary describes a fitted model.
type Summary struct {
	Order     Order
	ARCoeffs  []float64
	MACoeffs  []float64
	SARCoeffs []float64
	SMACoeffs []float64
	Mean      float64
	Variance  float64
	AIC       float64
	AICc      float64
	BIC       float64
	HQIC      float64
	OOB       float64
	LogLik    float64
	NObs      int
	LjungBox  *stats.LjungBoxResult
}

// Summary returns a summary of the fitted model, nil before Fit.
func (m *Model) Summary() *Summary {
	if !m.fitted {
		return nil
	}

	o := m.Order
	lb := stats.LjungBox(timeseries.New(m.residuals[m.start:m.end]), 10, o.P+o.Q+o.SP+o.SQ)

	return &Summary{
		Order:     o,
		ARCoeffs:  m.ARCoeffs,
		MACoeffs:  m.MACoeffs,
		SARCoeffs: m.SARCoeffs,
		SMACoeffs: m.SMACoeffs,
		Mean:      m.Mean,
		Variance:  m.Variance,
		AIC:       m.AIC,
		AICc:      m.AICc,
		BIC:       m.BIC,
		HQIC:      m.HQIC,
		OOB:       m.OOB,
		LogLik:    m.LogLik,
		NObs:      len(m.data),
		LjungBox:  lb,
	}
}

func clamp(v, bound float64) float64 {
	return math.Max(-bound, math.Min(bound, v))
}
