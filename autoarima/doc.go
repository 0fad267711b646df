// Package autoarima implements automatic SARIMA order selection.
//
// The search fixes the differencing orders with unit-root and seasonal
// strength tests, enumerates every remaining candidate within the bounds and
// fits them lightest first. Fitting is delegated to a Trainer, so candidates
// can run in isolated worker processes (package trainer) or in process.
//
// # Basic Usage
//
//	searcher := autoarima.NewSearcher(trainer.Local{})
//	cfg := autoarima.DefaultConfig()
//	cfg.TimeLimit = time.Minute
//
//	result, err := searcher.Search(ctx, series, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Best model: %s %s=%.2f\n", result.Model.Order, result.Criterion, result.Value)
//
// # Search Space
//
// Bounds caps each order and the total p+q+P+Q. A fixed dimension is set with
// Fixed, zero included:
//
//	cfg.Bounds.D = autoarima.Fixed(1)
//	cfg.Bounds.M = 12 // seasonal period
//
// Candidates are ordered by Weight, which charges 1000 for any seasonal term
// and grows quadratically in regular and cubically in seasonal orders.
//
// # Time Budget
//
// With TimeLimit set, each candidate gets the remaining budget divided by the
// number of candidates left. Candidates still pending when the budget runs
// out are reported as skipped. Failed candidates are counted, never retried.
package autoarima
