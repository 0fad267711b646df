package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sartorproj/arimastream/arima"
	"github.com/sartorproj/arimastream/autoarima"
	"github.com/sartorproj/arimastream/config"
	"github.com/sartorproj/arimastream/forecast"
	"github.com/sartorproj/arimastream/timeseries"
)

type searchOptions struct {
	dateColumn  string
	valueColumn string
	horizon     int
	confidence  float64
	m           int
	maxP        int
	maxD        int
	maxQ        int
	maxSP       int
	maxSD       int
	maxSQ       int
	criterion   string
	timeLimit   time.Duration
	inProcess   bool
}

func newSearchCmd(a *app) *cobra.Command {
	var o searchOptions
	cmd := &cobra.Command{
		Use:   "search <file.csv>",
		Short: "Search the best order for a CSV series and print its forecast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Default()
			if a.configPath != "" {
				cfg, err = config.Load(a.configPath)
			}
			if err != nil {
				return err
			}
			o.apply(cmd, cfg)
			if err := a.setup(cfg); err != nil {
				return err
			}
			defer a.close()
			return a.search(cmd, args[0], o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.dateColumn, "date-column", "", "timestamp column (default: ds, ts, timestamp or date)")
	f.StringVar(&o.valueColumn, "value-column", "y", "value column")
	f.IntVar(&o.horizon, "horizon", 10, "number of steps to forecast")
	f.Float64Var(&o.confidence, "confidence", forecast.DefaultConfidence, "prediction interval confidence")
	f.IntVar(&o.m, "m", 0, "seasonal period, 0 or 1 for none")
	f.IntVar(&o.maxP, "max-p", 5, "maximum AR order")
	f.IntVar(&o.maxD, "max-d", 2, "maximum differencing order")
	f.IntVar(&o.maxQ, "max-q", 5, "maximum MA order")
	f.IntVar(&o.maxSP, "max-sp", 2, "maximum seasonal AR order")
	f.IntVar(&o.maxSD, "max-sd", 1, "maximum seasonal differencing order")
	f.IntVar(&o.maxSQ, "max-sq", 2, "maximum seasonal MA order")
	f.StringVar(&o.criterion, "criterion", string(arima.AIC), "information criterion: aic, aicc, bic, hqic or oob")
	f.DurationVar(&o.timeLimit, "time-limit", 0, "whole-search time budget, 0 for none")
	f.BoolVar(&o.inProcess, "in-process", false, "fit candidates in this process instead of worker processes")
	return cmd
}

// apply copies the flags the user set over the configuration.
func (o searchOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	s := &cfg.Search
	set := func(name string, dst *int, v int) {
		if changed(name) {
			*dst = v
		}
	}
	set("m", &s.M, o.m)
	set("max-p", &s.MaxP, o.maxP)
	set("max-d", &s.MaxD, o.maxD)
	set("max-q", &s.MaxQ, o.maxQ)
	set("max-sp", &s.MaxSP, o.maxSP)
	set("max-sd", &s.MaxSD, o.maxSD)
	set("max-sq", &s.MaxSQ, o.maxSQ)
	if changed("criterion") {
		s.Criterion = o.criterion
	}
	if changed("time-limit") {
		s.TimeLimit = o.timeLimit
	}
	if changed("in-process") {
		s.InProcess = o.inProcess
	}
}

func (a *app) search(cmd *cobra.Command, path string, o searchOptions) error {
	criterion, err := arima.ParseCriterion(a.cfg.Search.Criterion)
	if err != nil {
		return err
	}
	opts := timeseries.DefaultCSVOptions()
	opts.DateColumn = o.dateColumn
	opts.ValueColumn = o.valueColumn
	series, err := timeseries.LoadCSV(path, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	t, err := a.newTrainer()
	if err != nil {
		return err
	}
	searchCfg := a.cfg.Job().Search
	searchCfg.Criterion = criterion
	searcher := autoarima.NewSearcher(t,
		autoarima.WithLogger(a.log.With().Str("component", "search").Logger()),
		autoarima.WithMetrics(a.metrics),
	)
	result, err := searcher.Search(cmd.Context(), series, searchCfg)
	if err != nil {
		return err
	}

	p, err := forecast.NewPredictor(result.Model, series.Values)
	if err != nil {
		return err
	}
	delta, err := timeseries.EstimateDelta(series.Timestamps, a.cfg.Forecast.DeltaSampleSize)
	if err != nil {
		return err
	}
	points, err := forecast.NewUpdater(p, delta).Forecast(o.horizon, o.confidence)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	m := result.Model
	fmt.Fprintf(w, "series\t%s (%d observations)\n", path, series.Len())
	fmt.Fprintf(w, "order\t%s\n", m.Order)
	fmt.Fprintf(w, "%s\t%.4f\n", result.Criterion, result.Value)
	fmt.Fprintf(w, "candidates\t%d fitted, %d failed, %d skipped in %s\n",
		result.Successes, result.Failures, result.Skipped, result.Elapsed.Round(time.Millisecond))
	if lb := m.LjungBox(10); lb != nil {
		fmt.Fprintf(w, "ljung-box\tQ=%.3f p=%.3f (%d lags)\n", lb.Statistic, lb.PValue, lb.Lags)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "timestamp\tforecast\tlow\thigh\n")
	for _, pt := range points {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\n", pt.Timestamp.Format(time.RFC3339), pt.Value, pt.Low, pt.High)
	}
	return w.Flush()
}
