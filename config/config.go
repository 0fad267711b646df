// Package config loads the arimastream configuration from YAML, applying
// struct-tag defaults, ARIMASTREAM_* environment overrides and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sartorproj/arimastream/arima"
	"github.com/sartorproj/arimastream/autoarima"
	"github.com/sartorproj/arimastream/database"
	"github.com/sartorproj/arimastream/job"
	"github.com/sartorproj/arimastream/logging"
	"github.com/sartorproj/arimastream/sink"
	"github.com/sartorproj/arimastream/source"
	"github.com/sartorproj/arimastream/timeseries"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARIMASTREAM_"

// Config is the whole configuration file.
type Config struct {
	Log      logging.Config `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
	Search   SearchConfig   `yaml:"search"`
	Forecast ForecastConfig `yaml:"forecast"`
	State    StateConfig    `yaml:"state"`
	Sink     SinkConfig     `yaml:"sink"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// SourceConfig selects where observations come from.
type SourceConfig struct {
	Type        string           `yaml:"type" default:"csv" validate:"oneof=csv sql"`
	Path        string           `yaml:"path"`
	DateColumn  string           `yaml:"date_column"`
	ValueColumn string           `yaml:"value_column" default:"y"`
	DateFormat  string           `yaml:"date_format"`
	Database    database.Config  `yaml:"database"`
	SQL         source.SQLConfig `yaml:"sql"`
	BatchSize   int              `yaml:"batch_size" default:"10000" validate:"gte=1"`
	Aggregate   AggregateConfig  `yaml:"aggregate"`
}

// AggregateConfig buckets raw observations when Interval is set.
type AggregateConfig struct {
	Interval string `yaml:"interval"`
	Function string `yaml:"function" default:"avg" validate:"oneof=avg min max sum count"`
}

// SearchConfig bounds the order search. A non-nil fixed value pins its
// component.
type SearchConfig struct {
	MaxP            int           `yaml:"max_p" default:"5" validate:"gte=0"`
	MaxD            int           `yaml:"max_d" default:"2" validate:"gte=0"`
	MaxQ            int           `yaml:"max_q" default:"5" validate:"gte=0"`
	MaxSP           int           `yaml:"max_P" default:"2" validate:"gte=0"`
	MaxSD           int           `yaml:"max_D" default:"1" validate:"gte=0"`
	MaxSQ           int           `yaml:"max_Q" default:"2" validate:"gte=0"`
	MaxOrder        int           `yaml:"max_order" default:"5" validate:"gte=0"`
	M               int           `yaml:"m" validate:"gte=0"`
	P               *int          `yaml:"p" validate:"omitempty,gte=0"`
	D               *int          `yaml:"d" validate:"omitempty,gte=0"`
	Q               *int          `yaml:"q" validate:"omitempty,gte=0"`
	SP              *int          `yaml:"P" validate:"omitempty,gte=0"`
	SD              *int          `yaml:"D" validate:"omitempty,gte=0"`
	SQ              *int          `yaml:"Q" validate:"omitempty,gte=0"`
	Criterion       string        `yaml:"criterion" default:"aic" validate:"oneof=aic aicc bic hqic oob"`
	StationTest     string        `yaml:"station_test" default:"kpss" validate:"oneof=kpss adf"`
	TimeLimit       time.Duration `yaml:"time_limit" validate:"gte=0"`
	MemoryCeilingMB int           `yaml:"memory_ceiling_mb" default:"8192" validate:"gte=0"`
	GracePeriod     time.Duration `yaml:"grace_period" default:"3s" validate:"gte=0"`
	InProcess       bool          `yaml:"in_process"`
	Watchdog        bool          `yaml:"watchdog"`
	OOBSize         int           `yaml:"oob_size" validate:"gte=0"`
	MaxIter         int           `yaml:"max_iter" validate:"gte=0"`
}

// ForecastConfig controls the predictor and updater.
type ForecastConfig struct {
	Ahead           int     `yaml:"ahead" default:"5" validate:"gte=0"`
	Confidence      float64 `yaml:"confidence" default:"0.95" validate:"gt=0,lt=1"`
	TrainFraction   float64 `yaml:"train_fraction" default:"0.75" validate:"gt=0,lte=1"`
	DeltaSampleSize int     `yaml:"delta_sample_size" default:"1000" validate:"gte=2"`
	GapThreshold    float64 `yaml:"gap_threshold" default:"1.5" validate:"gte=1"`
	MaxFill         int     `yaml:"max_fill" validate:"gte=0"`
}

// StateConfig selects where job state is kept.
type StateConfig struct {
	Type  string      `yaml:"type" default:"file" validate:"oneof=file redis channel"`
	Path  string      `yaml:"path" default:"arimastream.state"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig addresses the Redis state store.
type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Key      string `yaml:"key" default:"arimastream:state"`
}

// SinkConfig selects where predictions go.
type SinkConfig struct {
	Type       string           `yaml:"type" default:"jsonl" validate:"oneof=jsonl sql kafka"`
	Database   database.Config  `yaml:"database"`
	Table      string           `yaml:"table" default:"predictions"`
	Kafka      sink.KafkaConfig `yaml:"kafka"`
	Sets       sink.Sets        `yaml:"sets"`
	BufferSize int              `yaml:"buffer_size" default:"1000" validate:"gte=1"`
}

// MetricsConfig controls the HTTP endpoint served by "serve".
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Addr    string `yaml:"addr" default:":9090"`
	Path    string `yaml:"path" default:"/metrics"`
}

// ScheduleConfig controls "serve".
type ScheduleConfig struct {
	Cron       string `yaml:"cron" default:"0 * * * *" validate:"required"`
	RunOnStart bool   `yaml:"run_on_start"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads path (optional), loads .env if present, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_OUTPUT", &c.Log.Output)
	str("SOURCE_TYPE", &c.Source.Type)
	str("SOURCE_PATH", &c.Source.Path)
	str("SOURCE_DSN", &c.Source.Database.DSN)
	str("STATE_TYPE", &c.State.Type)
	str("STATE_PATH", &c.State.Path)
	str("REDIS_ADDR", &c.State.Redis.Addr)
	str("REDIS_PASSWORD", &c.State.Redis.Password)
	str("SINK_TYPE", &c.Sink.Type)
	str("SINK_DSN", &c.Sink.Database.DSN)
	str("SCHEDULE", &c.Schedule.Cron)
	str("METRICS_ADDR", &c.Metrics.Addr)

	if v := getenv(EnvPrefix + "KAFKA_BROKERS"); v != "" {
		c.Sink.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv(EnvPrefix + "TIME_LIMIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIME_LIMIT: %w", EnvPrefix, err)
		}
		c.Search.TimeLimit = d
	}
	if v := getenv(EnvPrefix + "MEMORY_CEILING_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMEMORY_CEILING_MB: %w", EnvPrefix, err)
		}
		c.Search.MemoryCeilingMB = n
	}
	return nil
}

// Validate checks field constraints and the settings each selected backend
// requires.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	switch c.Source.Type {
	case "csv":
		if c.Source.Path == "" {
			errs = append(errs, errors.New("source.path is required for csv sources"))
		}
	case "sql":
		if c.Source.Database.DSN == "" {
			errs = append(errs, errors.New("source.database.dsn is required for sql sources"))
		}
		if c.Source.SQL.Table == "" {
			errs = append(errs, errors.New("source.sql.table is required for sql sources"))
		}
	}
	if c.Source.Aggregate.Interval != "" {
		if _, err := c.Source.Aggregate.ParseInterval(); err != nil {
			errs = append(errs, fmt.Errorf("source.aggregate.interval: %w", err))
		}
	}
	switch c.State.Type {
	case "file":
		if c.State.Path == "" {
			errs = append(errs, errors.New("state.path is required for file state"))
		}
	case "redis":
		if c.State.Redis.Addr == "" {
			errs = append(errs, errors.New("state.redis.addr is required for redis state"))
		}
	}
	switch c.Sink.Type {
	case "sql":
		if c.Sink.Database.DSN == "" {
			errs = append(errs, errors.New("sink.database.dsn is required for sql sinks"))
		}
	case "kafka":
		if len(c.Sink.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("sink.kafka.brokers is required for kafka sinks"))
		}
	}
	if c.State.Type == "channel" && c.Sink.Type == "jsonl" && c.Log.Output == "stdout" {
		errs = append(errs, errors.New("log.output must not be stdout when the state channel and the jsonl sink use it"))
	}
	return errors.Join(errs...)
}

// Bounds converts the search section to grid bounds.
func (s SearchConfig) Bounds() autoarima.Bounds {
	return autoarima.Bounds{
		MaxP:     s.MaxP,
		MaxD:     s.MaxD,
		MaxQ:     s.MaxQ,
		MaxSP:    s.MaxSP,
		MaxSD:    s.MaxSD,
		MaxSQ:    s.MaxSQ,
		MaxOrder: s.MaxOrder,
		M:        s.M,
		P:        s.P,
		D:        s.D,
		Q:        s.Q,
		SP:       s.SP,
		SD:       s.SD,
		SQ:       s.SQ,
	}
}

// MemoryCeiling is the per-worker ceiling in bytes.
func (s SearchConfig) MemoryCeiling() uint64 {
	return uint64(s.MemoryCeilingMB) << 20
}

// ParseInterval parses the aggregation interval.
func (a AggregateConfig) ParseInterval() (timeseries.Interval, error) {
	return timeseries.ParseInterval(a.Interval)
}

// Job converts the search and forecast sections to job parameters.
func (c *Config) Job() job.Config {
	return job.Config{
		Search: autoarima.Config{
			Bounds:      c.Search.Bounds(),
			Criterion:   arima.Criterion(c.Search.Criterion),
			StationTest: c.Search.StationTest,
			TimeLimit:   c.Search.TimeLimit,
			FitOptions:  arima.Options{OOBSize: c.Search.OOBSize, MaxIter: c.Search.MaxIter},
		},
		BatchSize:       c.Source.BatchSize,
		TrainFraction:   c.Forecast.TrainFraction,
		Ahead:           c.Forecast.Ahead,
		Confidence:      c.Forecast.Confidence,
		DeltaSampleSize: c.Forecast.DeltaSampleSize,
		GapThreshold:    c.Forecast.GapThreshold,
		MaxFill:         c.Forecast.MaxFill,
	}
}
