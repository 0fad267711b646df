// Package timeseries provides time series data structures and utilities.
//
// This package includes the Series type for representing observation
// sequences, CSV loading, and the Delta clock used to invent timestamps for
// forecasts and for gap detection.
//
// # Creating a Series
//
//	values := []float64{100, 102, 105, 103, 108, 110}
//	series := timeseries.New(values)
//
// # Loading from CSV
//
//	opts := timeseries.DefaultCSVOptions()
//	opts.DateColumn = "ts"
//	opts.ValueColumn = "load"
//	series, err := timeseries.LoadCSV("data.csv", opts)
//
// # Transformations
//
//	diff := series.Diff()            // first difference
//	diff2 := series.DiffN(2)         // second-order difference
//	sdiff := series.SeasonalDiff(12) // seasonal difference
//	train, test := series.Split(0.75)
//
// # Sampling period
//
// EstimateDelta takes the median spacing of the leading timestamps, so a few
// missing samples do not skew it:
//
//	delta, err := timeseries.EstimateDelta(series.Timestamps, timeseries.DefaultDeltaSampleSize)
//	next := delta.Peek()   // preview
//	delta.Read()           // advance
//	delta.SetLatest(ts)    // follow a real observation
//
// Aggregation buckets are described by intervals:
//
//	iv, err := timeseries.ParseInterval("15m") // also "1d", "M", "q", "y"
//	start := iv.Truncate(ts)
package timeseries
