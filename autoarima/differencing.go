package autoarima

import (
	"github.com/sartorproj/arimastream/stats"
	"github.com/sartorproj/arimastream/timeseries"
)

// EstimateDifferencing fixes d and D with unit-root and seasonal-strength
// tests when they are free and could take more than one value.
func EstimateDifferencing(series *timeseries.Series, b Bounds, test string) Bounds {
	if b.D == nil && b.MaxD > 0 {
		b.D = Fixed(stats.NDiffs(series, b.MaxD, test))
	}
	if b.M > 1 && b.SD == nil && b.MaxSD > 0 {
		b.SD = Fixed(stats.NSDiffs(series, b.M, b.MaxSD))
	}
	return b
}
