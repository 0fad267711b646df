package forecast

import (
	"math"

	"github.com/sartorproj/arimastream/timeseries"
)

// RMSE scores predictions against observations. Each observation is compared
// with the prediction at its timestamp, linearly interpolated between the
// two surrounding predictions; observations outside the predicted range are
// ignored. Both series must be sorted by time. Returns NaN when nothing could
// be compared.
func RMSE(observed, predicted *timeseries.Series) float64 {
	if observed.Len() == 0 || predicted.Len() == 0 {
		return math.NaN()
	}

	pt, pv := predicted.Timestamps, predicted.Values
	sum, count := 0.0, 0
	j := 0
	for i, ts := range observed.Timestamps {
		for j+1 < len(pt) && !pt[j+1].After(ts) {
			j++
		}
		var pred float64
		switch {
		case pt[j].Equal(ts):
			pred = pv[j]
		case pt[j].Before(ts) && j+1 < len(pt):
			left := float64(ts.Sub(pt[j]))
			right := float64(pt[j+1].Sub(ts))
			pred = (right*pv[j] + left*pv[j+1]) / (left + right)
		default:
			continue
		}
		diff := pred - observed.Values[i]
		sum += diff * diff
		count++
	}

	if count == 0 {
		return math.NaN()
	}
	return math.Sqrt(sum / float64(count))
}
