// Package stats provides the statistical tests behind order selection.
//
// # Stationarity
//
// ADF tests for a unit root, KPSS for stationarity around a level or trend:
//
//	adf := stats.ADF(series, 0)   // lag order from (n-1)^(1/3)
//	kpss := stats.KPSS(series, "c", 0)
//
// NDiffs repeats the chosen test on successively differenced series and
// returns the first order that passes:
//
//	d := stats.NDiffs(series, 2, stats.StationTestKPSS)
//
// NSDiffs uses the seasonal strength of a classical additive decomposition,
// suggesting a seasonal difference when F_S >= 0.64:
//
//	D := stats.NSDiffs(series, 12, 1)
//
// # Autocorrelation
//
//	acf := stats.ACF(series, 20)
//	phi := stats.YuleWalker(series, 3) // AR(3) starting values
//	lb := stats.LjungBox(residuals, 10, p+q)
//
// # Information criteria
//
//	ic := stats.CalculateIC(logLik, nObs, nParams) // AIC, AICc, BIC, HQIC
package stats
