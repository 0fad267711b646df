package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sartorproj/arimastream/autoarima"
	"github.com/sartorproj/arimastream/config"
	"github.com/sartorproj/arimastream/database"
	"github.com/sartorproj/arimastream/job"
	"github.com/sartorproj/arimastream/logging"
	"github.com/sartorproj/arimastream/metrics"
	"github.com/sartorproj/arimastream/sink"
	"github.com/sartorproj/arimastream/source"
	"github.com/sartorproj/arimastream/state"
	"github.com/sartorproj/arimastream/timeseries"
	"github.com/sartorproj/arimastream/trainer"
)

type app struct {
	configPath string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer

	cfg       *config.Config
	log       zerolog.Logger
	logCloser io.Closer
	registry  *prometheus.Registry
	metrics   *metrics.Recorder
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{stdin: in, stdout: out, stderr: errOut, log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:   "arimastream",
		Short: "Streaming ARIMA order selection and forecasting",
		Long: "arimastream searches ARIMA/SARIMA orders in isolated worker processes, " +
			"then keeps a compact predictor up to date as observations arrive.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML configuration file")

	cmd.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newSearchCmd(a),
		newFitWorkerCmd(a),
	)
	return cmd
}

// init loads the configuration file and sets up logging and metrics.
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	return a.setup(cfg)
}

func (a *app) setup(cfg *config.Config) error {
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger
	a.logCloser = closer
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)
	return nil
}

func (a *app) close() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// closers releases resources in reverse order of acquisition.
type closers []io.Closer

func (c *closers) add(cl io.Closer) { *c = append(*c, cl) }

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i].Close())
	}
	return errors.Join(errs...)
}

func (a *app) openReader(ctx context.Context, res *closers) (source.Reader, error) {
	sc := a.cfg.Source
	var reader source.Reader
	switch sc.Type {
	case "csv":
		opts := timeseries.DefaultCSVOptions()
		opts.DateColumn = sc.DateColumn
		opts.ValueColumn = sc.ValueColumn
		if sc.DateFormat != "" {
			opts.DateFormat = sc.DateFormat
		}
		r, err := source.NewCSVReader(sc.Path, opts)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		reader = r
	case "sql":
		db, err := database.Open(ctx, sc.Database)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		res.add(db)
		r, err := source.NewSQLReader(db, sc.SQL)
		if err != nil {
			return nil, err
		}
		reader = r
	default:
		return nil, fmt.Errorf("unknown source type %q", sc.Type)
	}

	if sc.Aggregate.Interval == "" {
		return reader, nil
	}
	interval, err := sc.Aggregate.ParseInterval()
	if err != nil {
		return nil, err
	}
	return source.NewAggReader(reader, interval, sc.Aggregate.Function)
}

func (a *app) openStore(ctx context.Context, res *closers) (state.Store, error) {
	sc := a.cfg.State
	switch sc.Type {
	case "file":
		return state.FileStore{Path: sc.Path}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		res.add(client)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return state.NewRedisStore(client, sc.Redis.Key), nil
	case "channel":
		return state.NewChannelStore(a.stdin, a.stdout), nil
	default:
		return nil, fmt.Errorf("unknown state type %q", sc.Type)
	}
}

func (a *app) openWriter(ctx context.Context, res *closers) (*sink.Writer, error) {
	sc := a.cfg.Sink
	var backend sink.Backend
	switch sc.Type {
	case "jsonl":
		backend = sink.NewJSONLinesBackend(a.stdout)
	case "sql":
		db, err := database.Open(ctx, sc.Database)
		if err != nil {
			return nil, fmt.Errorf("open sink: %w", err)
		}
		res.add(db)
		b, err := sink.NewSQLBackend(db, sc.Database.Driver, sc.Table)
		if err != nil {
			return nil, err
		}
		if err := b.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("create predictions table: %w", err)
		}
		backend = b
	case "kafka":
		b, err := sink.NewKafkaBackend(sc.Kafka)
		if err != nil {
			return nil, fmt.Errorf("open sink: %w", err)
		}
		backend = b
	default:
		return nil, fmt.Errorf("unknown sink type %q", sc.Type)
	}
	return sink.NewWriter(backend, sc.Sets, sc.BufferSize, a.metrics), nil
}

func (a *app) newTrainer() (autoarima.Trainer, error) {
	sc := a.cfg.Search
	if sc.InProcess {
		return trainer.Local{}, nil
	}
	return trainer.New(
		trainer.WithMemoryCeiling(sc.MemoryCeiling()),
		trainer.WithGracePeriod(sc.GracePeriod),
		trainer.WithWatchdog(sc.Watchdog),
		trainer.WithLogger(a.log.With().Str("component", "trainer").Logger()),
	)
}

// runOnce performs one job invocation with freshly opened resources.
func (a *app) runOnce(ctx context.Context) (report *job.Report, err error) {
	var res closers
	defer func() {
		err = errors.Join(err, res.Close())
	}()

	reader, err := a.openReader(ctx, &res)
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(ctx, &res)
	if err != nil {
		return nil, err
	}
	writer, err := a.openWriter(ctx, &res)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, writer.Close(ctx))
	}()
	t, err := a.newTrainer()
	if err != nil {
		return nil, err
	}

	j := job.New(reader, store, writer, t, a.cfg.Job(),
		job.WithLogger(a.log.With().Str("component", "job").Logger()),
		job.WithMetrics(a.metrics),
	)
	return j.Run(ctx)
}
