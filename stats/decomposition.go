package stats

import (
	"math"

	"github.com/sartorproj/arimastream/timeseries"
)

// Decomposition holds the additive split Y = T + S + R of a series.
// Trend and Residual are NaN where the centered moving average is undefined.
type Decomposition struct {
	Trend    []float64
	Seasonal []float64
	Residual []float64
	Period   int
}

// Decompose performs classical additive decomposition with a centered
// moving-average trend. Returns nil when the series spans fewer than two periods.
func Decompose(series *timeseries.Series, period int) *Decomposition {
	n := series.Len()
	if period < 2 || n < 2*period {
		return nil
	}

	trend := centeredTrend(series.Values, period)

	pattern := make([]float64, period)
	counts := make([]int, period)
	for i, v := range series.Values {
		if math.IsNaN(trend[i]) {
			continue
		}
		pattern[i%period] += v - trend[i]
		counts[i%period]++
	}
	mean := 0.0
	for i := range pattern {
		if counts[i] > 0 {
			pattern[i] /= float64(counts[i])
		}
		mean += pattern[i]
	}
	mean /= float64(period)

	seasonal := make([]float64, n)
	residual := make([]float64, n)
	for i, v := range series.Values {
		seasonal[i] = pattern[i%period] - mean
		residual[i] = v - trend[i] - seasonal[i]
	}

	return &Decomposition{
		Trend:    trend,
		Seasonal: seasonal,
		Residual: residual,
		Period:   period,
	}
}

// centeredTrend is a 2xm moving average for even m and an m moving average for odd m.
func centeredTrend(values []float64, period int) []float64 {
	n := len(values)
	trend := make([]float64, n)
	for i := range trend {
		trend[i] = math.NaN()
	}

	half := period / 2
	for i := half; i < n-half; i++ {
		sum := 0.0
		if period%2 == 0 {
			sum += 0.5*values[i-half] + 0.5*values[i+half]
			for j := i - half + 1; j < i+half; j++ {
				sum += values[j]
			}
		} else {
			for j := i - half; j <= i+half; j++ {
				sum += values[j]
			}
		}
		trend[i] = sum / float64(period)
	}
	return trend
}
