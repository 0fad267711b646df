// Package main demonstrates order search in worker processes followed by
// incremental forecasting over a stream with missing observations.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sartorproj/arimastream/arima"
	"github.com/sartorproj/arimastream/autoarima"
	"github.com/sartorproj/arimastream/forecast"
	"github.com/sartorproj/arimastream/stats"
	"github.com/sartorproj/arimastream/timeseries"
	"github.com/sartorproj/arimastream/trainer"
)

// Dataset defines a synthetic stream to analyze
type Dataset struct {
	Name        string
	Description string
	N           int           // Number of observations
	Step        time.Duration // Sampling period
	Period      int           // Seasonal period (0 = non-seasonal)
	DropEvery   int           // Drop every n-th streamed observation (0 = none)
	Generate    func(i int, prev float64, rng *rand.Rand) float64
}

// StreamResult holds the outcome for JSON export
type StreamResult struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	NObs         int                    `json:"n_obs"`
	Order        string                 `json:"order"`
	Criterion    float64                `json:"aicc"`
	Candidates   int                    `json:"candidates"`
	Failures     int                    `json:"failures"`
	Streamed     int                    `json:"streamed"`
	Filled       int                    `json:"filled"`
	RMSE         float64                `json:"rmse"`
	MAE          float64                `json:"mae"`
	MAPE         float64                `json:"mape"`
	Forecasts    []float64              `json:"forecasts"`
	Low          []float64              `json:"low"`
	High         []float64              `json:"high"`
	Stationarity map[string]interface{} `json:"stationarity"`
	ACF          []float64              `json:"acf"`
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == trainer.WorkerCommand {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		if err := trainer.RunWorker(context.Background(), os.Stdin, os.Stdout, logger); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("arimastream demonstration - isolated order search and streaming updates")
	fmt.Println(strings.Repeat("=", 80))

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()
	t, err := trainer.New(
		trainer.WithMemoryCeiling(2<<30),
		trainer.WithGracePeriod(time.Second),
		trainer.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	datasets := []Dataset{
		{Name: "AR(1)", Description: "Mean-reverting process around 50", N: 200, Step: time.Minute, DropEvery: 7,
			Generate: func(i int, prev float64, rng *rand.Rand) float64 {
				if i == 0 {
					return 50
				}
				return 50 + 0.7*(prev-50) + rng.NormFloat64()
			}},
		{Name: "Random walk with drift", Description: "Integrated series with a small upward drift", N: 200, Step: time.Hour, DropEvery: 11,
			Generate: func(i int, prev float64, rng *rand.Rand) float64 {
				return prev + 0.2 + rng.NormFloat64()
			}},
		{Name: "Monthly seasonal", Description: "Level 100 with a yearly cycle", N: 144, Step: 30 * 24 * time.Hour, Period: 12,
			Generate: func(i int, _ float64, rng *rand.Rand) float64 {
				return 100 + 10*math.Sin(2*math.Pi*float64(i)/12) + rng.NormFloat64()
			}},
	}

	var results []StreamResult
	for i, ds := range datasets {
		fmt.Printf("\n%s\n[%d/%d] %s\n%s\n", strings.Repeat("=", 80), i+1, len(datasets), ds.Name, strings.Repeat("=", 80))
		result, err := analyze(t, ds)
		if err != nil {
			fmt.Printf("   Error: %v\n", err)
			continue
		}
		results = append(results, *result)
	}

	if data, err := json.MarshalIndent(results, "", "  "); err == nil {
		os.WriteFile("stream_results.json", data, 0644)
		fmt.Printf("\nExported %d datasets to stream_results.json\n", len(results))
	}
}

// generate builds the dataset's series starting at a fixed instant
func generate(ds Dataset) *timeseries.Series {
	rng := rand.New(rand.NewPCG(uint64(ds.N), uint64(ds.Step)))
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &timeseries.Series{Name: ds.Name}
	prev := 0.0
	for i := 0; i < ds.N; i++ {
		prev = ds.Generate(i, prev, rng)
		s.Append(start.Add(time.Duration(i)*ds.Step), prev)
	}
	return s
}

// analyze searches on the first 75% of a stream and replays the rest
func analyze(t autoarima.Trainer, ds Dataset) (*StreamResult, error) {
	series := generate(ds)
	train, test := series.Split(0.75)
	fmt.Printf("   %s: %d observations, train %d, stream %d\n", ds.Description, series.Len(), train.Len(), test.Len())

	result := &StreamResult{
		Name:         ds.Name,
		Description:  ds.Description,
		NObs:         series.Len(),
		Stationarity: make(map[string]interface{}),
	}
	if adf := stats.ADF(train, 0); adf != nil {
		result.Stationarity["adf_pvalue"] = adf.PValue
	}
	if kpss := stats.KPSS(train, "c", 0); kpss != nil {
		result.Stationarity["kpss_pvalue"] = kpss.PValue
	}
	result.Stationarity["ndiffs"] = stats.NDiffs(train, 2, stats.StationTestKPSS)
	result.ACF = stats.ACF(train, min(24, train.Len()/2))

	cfg := autoarima.DefaultConfig()
	cfg.Criterion = arima.AICc
	cfg.TimeLimit = time.Minute
	cfg.Bounds.MaxP, cfg.Bounds.MaxQ = 2, 2
	cfg.Bounds.MaxSP, cfg.Bounds.MaxSQ = 1, 1
	cfg.Bounds.M = ds.Period
	search, err := autoarima.NewSearcher(t).Search(context.Background(), train, cfg)
	if err != nil {
		return nil, err
	}
	model := search.Model
	result.Order = model.Order.String()
	result.Criterion = search.Value
	result.Candidates = search.Candidates
	result.Failures = search.Failures
	fmt.Printf("   Best ARIMA%s: AICc=%.2f (%d candidates, %d failed, %s)\n",
		model.Order, search.Value, search.Candidates, search.Failures, search.Elapsed.Round(time.Millisecond))

	p, err := forecast.NewPredictor(model, train.Values)
	if err != nil {
		return nil, err
	}
	delta, err := timeseries.EstimateDelta(train.Timestamps, 0)
	if err != nil {
		return nil, err
	}
	u := forecast.NewUpdater(p, delta)

	// replay the held-out part, skipping some observations
	observed, predicted := &timeseries.Series{}, &timeseries.Series{}
	for i, v := range test.Values {
		if ds.DropEvery > 0 && i%ds.DropEvery == ds.DropEvery-1 {
			continue
		}
		ts := test.Timestamps[i]
		f, filled := u.AppendPredict(ts, v)
		result.Filled += filled
		observed.Append(ts, v)
		predicted.Append(ts, f)
	}
	result.Streamed = observed.Len()
	result.RMSE = forecast.RMSE(observed, predicted)
	_, result.MAE, result.MAPE = metrics(observed.Values, predicted.Values)
	fmt.Printf("   Streamed %d observations, filled %d gaps: one-step RMSE=%.4f MAE=%.4f MAPE=%.2f%%\n",
		result.Streamed, result.Filled, result.RMSE, result.MAE, result.MAPE)
	fmt.Printf("   Predictor holds %d values (training set had %d)\n", p.Len(), train.Len())

	points, err := u.Forecast(12, forecast.DefaultConfidence)
	if err != nil {
		return nil, err
	}
	for _, pt := range points {
		result.Forecasts = append(result.Forecasts, pt.Value)
		result.Low = append(result.Low, pt.Low)
		result.High = append(result.High, pt.High)
	}
	fmt.Printf("   Next: %.2f [%.2f, %.2f] at %s\n",
		points[0].Value, points[0].Low, points[0].High, points[0].Timestamp.Format(time.RFC3339))
	return result, nil
}

// metrics calculates forecast accuracy metrics
func metrics(actual, predicted []float64) (rmse, mae, mape float64) {
	n := min(len(actual), len(predicted))
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		d := actual[i] - predicted[i]
		rmse += d * d
		mae += math.Abs(d)
		if actual[i] != 0 {
			mape += math.Abs(d) / math.Abs(actual[i]) * 100
		}
	}
	return math.Sqrt(rmse / float64(n)), mae / float64(n), mape / float64(n)
}
