// Package stats provides statistical tests and functions for time series analysis.
package stats

import (
	"gonum.org/v1/gonum/floats"

	"github.com/sartorproj/arimastream/timeseries"
)

// ACF calculates the Autocorrelation Function for lags 0 to maxLag.
// Returns nil for a constant series.
func ACF(series *timeseries.Series, maxLag int) []float64 {
	n := series.Len()
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	centered := make([]float64, n)
	copy(centered, series.Values)
	floats.AddConst(-series.Mean(), centered)

	variance := floats.Dot(centered, centered)
	if variance == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		acf[k] = floats.Dot(centered[k:], centered[:n-k]) / variance
	}
	return acf
}

// YuleWalker estimates AR(p) coefficients from the sample autocorrelations
// with the Durbin-Levinson recursion. Returns nil if the recursion degenerates.
func YuleWalker(series *timeseries.Series, p int) []float64 {
	if p <= 0 {
		return []float64{}
	}
	acf := ACF(series, p)
	if len(acf) <= p {
		return nil
	}

	phi := make([]float64, p+1)
	prev := make([]float64, p+1)
	for k := 1; k <= p; k++ {
		num := acf[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= prev[j] * acf[k-j]
			den -= prev[j] * acf[j]
		}
		if den == 0 {
			return nil
		}
		phi[k] = num / den
		for j := 1; j < k; j++ {
			phi[j] = prev[j] - phi[k]*prev[k-j]
		}
		copy(prev, phi)
	}
	return phi[1:]
}
