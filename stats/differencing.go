package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/arimastream/timeseries"
)

// Unit-root test names accepted by NDiffs.
const (
	StationTestKPSS = "kpss"
	StationTestADF  = "adf"
)

// SeasonalStrengthThreshold is the F_S value at which a seasonal difference is suggested.
const SeasonalStrengthThreshold = 0.64

// NDiffs estimates the number of first differences, up to maxD, needed to make
// the series stationary according to testType ("kpss" or "adf").
func NDiffs(series *timeseries.Series, maxD int, testType string) int {
	if maxD <= 0 {
		maxD = 2
	}

	current := series
	for d := 0; d < maxD; d++ {
		if stationary(current, testType) {
			return d
		}
		current = current.Diff()
		if current.Len() < 10 {
			return d
		}
	}
	return maxD
}

func stationary(series *timeseries.Series, testType string) bool {
	if testType == StationTestADF {
		r := ADF(series, 0)
		return r != nil && r.IsStationary
	}
	r := KPSS(series, "c", 0)
	return r != nil && r.IsStationary
}

// NSDiffs estimates the number of seasonal differences, up to maxD, from the
// seasonal strength F_S = max(0, 1 - Var(R)/Var(S+R)).
func NSDiffs(series *timeseries.Series, period int, maxD int) int {
	if maxD <= 0 {
		maxD = 1
	}
	if period <= 1 || series.Len() < 2*period {
		return 0
	}

	current := series
	for d := 0; d < maxD; d++ {
		if SeasonalStrength(current, period) < SeasonalStrengthThreshold {
			return d
		}
		current = current.SeasonalDiff(period)
		if current.Len() < 2*period {
			return d + 1
		}
	}
	return maxD
}

// SeasonalStrength returns F_S for the given period, 0 when undefined.
func SeasonalStrength(series *timeseries.Series, period int) float64 {
	decomp := Decompose(series, period)
	if decomp == nil {
		return 0
	}

	var resid, seasonalResid []float64
	for i, r := range decomp.Residual {
		if math.IsNaN(r) {
			continue
		}
		resid = append(resid, r)
		seasonalResid = append(seasonalResid, decomp.Seasonal[i]+r)
	}
	if len(resid) < 2 {
		return 0
	}

	varSR := stat.Variance(seasonalResid, nil)
	if varSR == 0 {
		return 0
	}
	return math.Max(0, 1-stat.Variance(resid, nil)/varSR)
}

// InformationCriteria holds the penalised likelihood scores of a fit.
type InformationCriteria struct {
	AIC    float64
	AICc   float64
	BIC    float64
	HQIC   float64
	LogLik float64
}

// CalculateIC calculates AIC, AICc, BIC and HQIC from a log-likelihood,
// the number of observations and the number of estimated parameters.
func CalculateIC(logLik float64, nObs int, nParams int) InformationCriteria {
	k := float64(nParams)
	n := float64(nObs)

	ic := InformationCriteria{
		AIC:    -2*logLik + 2*k,
		BIC:    -2*logLik + k*math.Log(n),
		HQIC:   -2*logLik + 2*k*math.Log(math.Log(n)),
		LogLik: logLik,
	}
	if n-k-1 > 0 {
		ic.AICc = ic.AIC + 2*k*(k+1)/(n-k-1)
	} else {
		ic.AICc = math.Inf(1)
	}
	return ic
}
