// Package forecast operates a fitted model incrementally.
//
// A Predictor is built once from a fitted snapshot and the data it was fitted
// on, then keeps only the trailing observations and residuals its recursion
// needs. New observations are absorbed without refitting:
//
//	p, err := forecast.NewPredictor(model, train.Values)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p.Append(42.0, 43.5)
//	next := p.Predict(5)
//
// An Updater adds timestamps on top: it estimates where the next observation
// is due and, when observations are missing, fills the gap with the model's
// own one-step predictions so the lag structure stays aligned with time.
package forecast
