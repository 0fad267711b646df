package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidence is the default coverage of prediction intervals.
const DefaultConfidence = 0.95

// PsiWeights returns the first n coefficients of the MA(infinity)
// representation of the integrated model.
func (p *Predictor) PsiWeights(n int) []float64 {
	if n <= 0 {
		return nil
	}

	// phi(B) = (1 - sum(AR_i B^i)) (1 - B)^D, stored as 1 - sum(phi_i B^i).
	poly := make([]float64, len(p.ar)+1)
	poly[0] = 1
	for i, c := range p.ar {
		poly[i+1] = -c
	}
	for k := 0; k < p.d; k++ {
		next := make([]float64, len(poly)+1)
		for i, c := range poly {
			next[i] += c
			next[i+1] -= c
		}
		poly = next
	}

	psi := make([]float64, n)
	psi[0] = 1
	for j := 1; j < n; j++ {
		v := 0.0
		if j <= len(p.ma) {
			v = p.ma[j-1]
		}
		for i := 1; i < len(poly) && i <= j; i++ {
			v -= poly[i] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

// Intervals returns the lower and upper bounds of prediction intervals with
// the given coverage around forecasts, where forecasts[h] is the h+1 step
// ahead forecast from the current state.
func (p *Predictor) Intervals(forecasts []float64, confidence float64) (low, high []float64, err error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, nil, fmt.Errorf("confidence %v outside (0, 1)", confidence)
	}
	z := distuv.UnitNormal.Quantile((1 + confidence) / 2)
	psi := p.PsiWeights(len(forecasts))
	sigma2 := max(p.variance, 0)

	low = make([]float64, len(forecasts))
	high = make([]float64, len(forecasts))
	sum := 0.0
	for h, f := range forecasts {
		sum += psi[h] * psi[h]
		half := z * math.Sqrt(sigma2*sum)
		low[h] = f - half
		high[h] = f + half
	}
	return low, high, nil
}
