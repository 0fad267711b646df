package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/arimastream/timeseries"
)

func noise(n int, seed int64, scale float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * scale
	}
	return out
}

func ar1(n int, phi float64, seed int64) []float64 {
	e := noise(n, seed, 1)
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		out[i] = phi*out[i-1] + e[i]
	}
	return out
}

func TestACF(t *testing.T) {
	series := timeseries.New([]float64{1, 2, 3, 4, 5, 4, 3, 2, 1, 2, 3, 4})
	acf := ACF(series, 5)

	require.Len(t, acf, 6)
	assert.InDelta(t, 1.0, acf[0], 1e-12)
	for _, v := range acf {
		assert.LessOrEqual(t, math.Abs(v), 1.0+1e-12)
	}

	assert.Nil(t, ACF(timeseries.New([]float64{3, 3, 3, 3}), 2))
	assert.Len(t, ACF(series, 50), series.Len())
}

func TestYuleWalker(t *testing.T) {
	series := timeseries.New(ar1(2000, 0.7, 1))

	phi := YuleWalker(series, 1)
	require.Len(t, phi, 1)
	assert.InDelta(t, 0.7, phi[0], 0.06)

	phi2 := YuleWalker(series, 2)
	require.Len(t, phi2, 2)
	assert.InDelta(t, 0.7, phi2[0], 0.08)
	assert.InDelta(t, 0.0, phi2[1], 0.08)

	assert.Empty(t, YuleWalker(series, 0))
}

func TestADF(t *testing.T) {
	stationary := timeseries.New(ar1(300, 0.3, 2))
	result := ADF(stationary, 0)
	require.NotNil(t, result)
	assert.True(t, result.IsStationary, "statistic %f", result.Statistic)

	walk := make([]float64, 300)
	steps := noise(300, 3, 1)
	for i := 1; i < len(walk); i++ {
		walk[i] = walk[i-1] + 1 + steps[i]
	}
	trending := ADF(timeseries.New(walk), 0)
	require.NotNil(t, trending)
	assert.False(t, trending.IsStationary, "statistic %f", trending.Statistic)

	assert.Nil(t, ADF(timeseries.New([]float64{1, 2, 3}), 0))
}

func TestKPSS(t *testing.T) {
	trend := make([]float64, 200)
	for i := range trend {
		trend[i] = float64(i) * 0.5
	}
	result := KPSS(timeseries.New(trend), "c", 0)
	require.NotNil(t, result)
	assert.False(t, result.IsStationary)
	assert.Equal(t, 0.463, result.CriticalVals["5%"])

	detrended := KPSS(timeseries.New(trend), "ct", 0)
	require.NotNil(t, detrended)
	assert.Equal(t, 0.146, detrended.CriticalVals["5%"])

	assert.Nil(t, KPSS(timeseries.New([]float64{1, 2}), "c", 0))
}

func TestNDiffs(t *testing.T) {
	n := 200
	e := noise(n, 4, 1)
	trend := make([]float64, n)
	for i := range trend {
		trend[i] = 100 + float64(i)*2 + e[i]
	}
	assert.GreaterOrEqual(t, NDiffs(timeseries.New(trend), 2, StationTestKPSS), 1)
	assert.LessOrEqual(t, NDiffs(timeseries.New(trend), 2, StationTestKPSS), 2)

	// Too short for either test.
	assert.Equal(t, 0, NDiffs(timeseries.New([]float64{10, 12, 11, 13, 12, 14}), 1, StationTestKPSS))
}

func TestNDiffsADF(t *testing.T) {
	assert.Zero(t, NDiffs(timeseries.New(ar1(300, 0.3, 2)), 2, StationTestADF))

	walk := make([]float64, 300)
	steps := noise(300, 3, 1)
	for i := 1; i < len(walk); i++ {
		walk[i] = walk[i-1] + 1 + steps[i]
	}
	assert.GreaterOrEqual(t, NDiffs(timeseries.New(walk), 2, StationTestADF), 1)
}

func TestNSDiffs(t *testing.T) {
	n := 120
	seasonal := make([]float64, n)
	for i := range seasonal {
		seasonal[i] = 100 + float64(i)*0.5 + 15*math.Sin(2*math.Pi*float64(i)/12)
	}
	series := timeseries.New(seasonal)

	assert.Greater(t, SeasonalStrength(series, 12), SeasonalStrengthThreshold)
	assert.Equal(t, 1, NSDiffs(series, 12, 1))

	assert.Equal(t, 0, NSDiffs(timeseries.New(noise(120, 5, 1)), 12, 1))
	assert.Equal(t, 0, NSDiffs(series.Slice(0, 20), 12, 1))
	assert.Equal(t, 0, NSDiffs(series, 1, 1))
}

func TestDecompose(t *testing.T) {
	n := 48
	values := make([]float64, n)
	pattern := []float64{3, -1, -2, 0}
	for i := range values {
		values[i] = 50 + float64(i) + pattern[i%4]
	}

	d := Decompose(timeseries.New(values), 4)
	require.NotNil(t, d)
	assert.True(t, math.IsNaN(d.Trend[0]))
	for i := 4; i < 8; i++ {
		assert.InDelta(t, pattern[i%4], d.Seasonal[i], 1e-9)
		assert.InDelta(t, 0, d.Residual[i], 1e-9)
	}

	assert.Nil(t, Decompose(timeseries.New(values[:6]), 4))
}

func TestCalculateIC(t *testing.T) {
	ic := CalculateIC(-100, 50, 3)

	assert.InDelta(t, 206.0, ic.AIC, 1e-9)
	assert.InDelta(t, 206.0+2*3*4/46.0, ic.AICc, 1e-9)
	assert.InDelta(t, 200+3*math.Log(50), ic.BIC, 1e-9)
	assert.InDelta(t, 200+6*math.Log(math.Log(50)), ic.HQIC, 1e-9)

	assert.True(t, math.IsInf(CalculateIC(-1, 4, 3).AICc, 1))
}

func TestLjungBox(t *testing.T) {
	correlated := LjungBox(timeseries.New(ar1(300, 0.9, 6)), 10, 0)
	require.NotNil(t, correlated)
	assert.Less(t, correlated.PValue, 0.01)
	assert.Equal(t, 10, correlated.DOF)

	white := LjungBox(timeseries.New(noise(300, 7, 1)), 10, 2)
	require.NotNil(t, white)
	assert.Equal(t, 8, white.DOF)
	assert.Greater(t, white.PValue, correlated.PValue)

	assert.Nil(t, LjungBox(timeseries.New([]float64{1, 2, 3}), 10, 0))
}
