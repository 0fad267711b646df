// Package arima implements seasonal ARIMA (SARIMA) models.
//
// A SARIMA(p,d,q)(P,D,Q)[m] model differences the series d times and then
// seasonally D times with period m, and fits additive AR and MA lags at
// 1..p, m..Pm and 1..q, m..Qm by conditional sum of squares.
//
// # Basic Usage
//
//	model, err := arima.Fit(values, arima.Order{P: 1, D: 1, Q: 1}, arima.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("AIC: %.2f, BIC: %.2f\n", model.AIC, model.BIC)
//	forecasts, _ := model.Predict(10)
//
// Seasonal orders set M and the seasonal components:
//
//	order := arima.Order{P: 1, D: 1, SQ: 1, SD: 1, M: 12}
//
// # Snapshots
//
// Trained folds a fitted model into constant form with seasonal lags and
// seasonal differencing expanded into plain AR/MA polynomials. The snapshot
// is what crosses process boundaries and what incremental predictors run on:
//
//	snap, err := model.Trained()
//	aic, ok := snap.Criterion(arima.AIC)
//
// # Out-of-bag scoring
//
// Options.OOBSize holds out a tail of the series from estimation; the OOB
// criterion is the mean squared one-step error on it.
package arima
