// Package arimastream trains seasonal ARIMA models on a stream of
// observations and keeps their forecasts current as new data arrives.
//
// A job run either trains or resumes. On the first run the series is read
// from its source, the best order is chosen by an exhaustive grid search
// where every candidate is fitted in its own worker process under a time
// and memory limit, and the fitted model is validated against a held-out
// tail. Later runs restore the predictor from the saved state and absorb
// only the observations newer than the last one seen, filling missing
// steps with the model's own predictions.
//
// # Packages
//
//   - timeseries: series, sampling-period estimation, CSV input
//   - stats: stationarity tests, autocorrelation, differencing order
//   - arima: seasonal ARIMA fitting and the portable Trained snapshot
//   - autoarima: order grid, candidate ranking and the search loop
//   - trainer: isolated worker processes and the in-process trainer
//   - forecast: the incremental Predictor and gap-aware Updater
//   - source, sink, state: inputs, outputs and persisted job state
//   - job: one train or resume run end to end
//   - config, logging, metrics, scheduler, server: the service around it
//
// The arimastream command runs a single job, serves jobs on a cron
// schedule, or searches a CSV file interactively.
//
// # References
//
//   - Hyndman, R.J., & Athanasopoulos, G. (2021). Forecasting: Principles and Practice
//   - Box, G. E. P., & Jenkins, G. M. (1976). Time Series Analysis: Forecasting and Control
package arimastream
