package arima

import (
	"fmt"
	"math"

	"github.com/sartorproj/arimastream/stats"
	"github.com/sartorproj/arimastream/timeseries"
)

// Trained is the portable snapshot of a fitted model in constant form:
//
//	z_t = Intercept + sum(AR_k z_{t-k}) + sum(MA_k e_{t-k}) + e_t
//
// where z is the series after D regular differences. Seasonal AR lags and
// seasonal differencing are folded into AR, seasonal MA lags into MA.
// Residuals are aligned with the training data; positions consumed by
// differencing hold zero.
type Trained struct {
	Order     Order              `msgpack:"order"`
	Intercept float64            `msgpack:"intercept"`
	Mean      float64            `msgpack:"mean"`
	AR        []float64          `msgpack:"ar"`
	MA        []float64          `msgpack:"ma"`
	D         int                `msgpack:"d"`
	Residuals []float64          `msgpack:"residuals"`
	Variance  float64            `msgpack:"variance"`
	NObs      int                `msgpack:"nobs"`
	Criteria  map[string]float64 `msgpack:"criteria"`
}

// Trained folds the fitted model into its constant-form snapshot.
func (m *Model) Trained() (*Trained, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	o := m.Order

	// a(B) = 1 - sum(phi_i B^i) - sum(Phi_i B^{im})
	a := make([]float64, max(o.P, o.SP*o.M)+1)
	a[0] = 1
	for i, phi := range m.ARCoeffs {
		a[i+1] -= phi
	}
	for i, phi := range m.SARCoeffs {
		a[(i+1)*o.M] -= phi
	}

	full := a
	if o.SD > 0 {
		seasonalDiff := make([]float64, o.M+1)
		seasonalDiff[0], seasonalDiff[o.M] = 1, -1
		for i := 0; i < o.SD; i++ {
			full = polyMul(full, seasonalDiff)
		}
	}
	ar := make([]float64, len(full)-1)
	for k := 1; k < len(full); k++ {
		ar[k-1] = -full[k]
	}

	// theta(B) = 1 + sum(theta_j B^j) + sum(Theta_j B^{jm})
	ma := make([]float64, max(o.Q, o.SQ*o.M))
	for j, theta := range m.MACoeffs {
		ma[j] += theta
	}
	for j, theta := range m.SMACoeffs {
		ma[(j+1)*o.M-1] += theta
	}

	residuals := make([]float64, len(m.data))
	copy(residuals[len(m.data)-len(m.residuals):], m.residuals)

	criteria := make(map[string]float64, len(Criteria))
	for c, v := range map[Criterion]float64{AIC: m.AIC, AICc: m.AICc, BIC: m.BIC, HQIC: m.HQIC, OOB: m.OOB} {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			criteria[string(c)] = v
		}
	}

	return &Trained{
		Order:     o,
		Intercept: m.Mean * polySum(a),
		Mean:      m.Mean,
		AR:        ar,
		MA:        ma,
		D:         o.D,
		Residuals: residuals,
		Variance:  m.Variance,
		NObs:      len(m.data),
		Criteria:  criteria,
	}, nil
}

// Criterion returns the value of c and whether it is available and finite.
func (t *Trained) Criterion(c Criterion) (float64, bool) {
	v, ok := t.Criteria[string(c)]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Validate checks the internal consistency of a snapshot received from
// another process or decoded from storage.
func (t *Trained) Validate() error {
	if err := t.Order.Validate(); err != nil {
		return err
	}
	if t.D != t.Order.D {
		return fmt.Errorf("snapshot differencing %d does not match order %s", t.D, t.Order)
	}
	if len(t.Residuals) != t.NObs {
		return fmt.Errorf("snapshot has %d residuals for %d observations", len(t.Residuals), t.NObs)
	}
	return nil
}

// LjungBox tests the residuals for autocorrelation up to lags, skipping the
// positions consumed by differencing. Nil when there are too few residuals.
func (t *Trained) LjungBox(lags int) *stats.LjungBoxResult {
	o := t.Order
	res := t.Residuals[min(o.Lost(), len(t.Residuals)):]
	return stats.LjungBox(timeseries.New(res), lags, o.NumParams()-1)
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			out[i+j] += x * y
		}
	}
	return out
}

func polySum(p []float64) float64 {
	s := 0.0
	for _, c := range p {
		s += c
	}
	return s
}
