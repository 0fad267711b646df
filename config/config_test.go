package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/arimastream/arima"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arimastream.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "stderr", c.Log.Output)
	assert.Equal(t, 10000, c.Source.BatchSize)
	assert.Equal(t, 5, c.Search.MaxP)
	assert.Equal(t, 2, c.Search.MaxD)
	assert.Equal(t, 2, c.Search.MaxSP)
	assert.Equal(t, 1, c.Search.MaxSD)
	assert.Equal(t, 5, c.Search.MaxOrder)
	assert.Equal(t, "aic", c.Search.Criterion)
	assert.Equal(t, "kpss", c.Search.StationTest)
	assert.Equal(t, uint64(8192<<20), c.Search.MemoryCeiling())
	assert.Equal(t, 3*time.Second, c.Search.GracePeriod)
	assert.Zero(t, c.Search.TimeLimit)
	assert.Equal(t, 5, c.Forecast.Ahead)
	assert.Equal(t, 0.95, c.Forecast.Confidence)
	assert.Equal(t, 0.75, c.Forecast.TrainFraction)
	assert.Equal(t, 1000, c.Forecast.DeltaSampleSize)
	assert.Equal(t, 1.5, c.Forecast.GapThreshold)
	assert.Equal(t, 1000, c.Sink.BufferSize)
	assert.Equal(t, "future", c.Sink.Sets.Future)
	assert.Equal(t, "sqlite", c.Source.Database.Driver)
	assert.Equal(t, "zstd", c.Sink.Kafka.Compression)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
source:
  type: sql
  database:
    driver: clickhouse
    dsn: clickhouse://localhost:9000/metrics
  sql:
    table: cpu
  aggregate:
    interval: 15m
    function: max
search:
  max_p: 2
  max_d: 0
  max_P: 0
  m: 12
  d: 1
  criterion: bic
  time_limit: 90s
forecast:
  ahead: 12
state:
  type: redis
sink:
  type: kafka
  kafka:
    brokers: [localhost:9092]
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "clickhouse", c.Source.Database.Driver)
	assert.Equal(t, "cpu", c.Source.SQL.Table)
	assert.Equal(t, "ts", c.Source.SQL.TimeColumn)
	assert.Equal(t, 0, c.Search.MaxD, "explicit zero survives defaults")
	assert.Equal(t, 5, c.Search.MaxQ)
	require.NotNil(t, c.Search.D)
	assert.Equal(t, 1, *c.Search.D)
	assert.Nil(t, c.Search.P)

	iv, err := c.Source.Aggregate.ParseInterval()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, iv.Duration())

	jc := c.Job()
	assert.Equal(t, arima.BIC, jc.Search.Criterion)
	assert.Equal(t, 90*time.Second, jc.Search.TimeLimit)
	assert.Equal(t, 12, jc.Search.Bounds.M)
	assert.Equal(t, 12, jc.Ahead)
	assert.Equal(t, 0.75, jc.TrainFraction)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "source:\n  path: data.csv\n")
	t.Setenv("ARIMASTREAM_LOG_LEVEL", "debug")
	t.Setenv("ARIMASTREAM_SOURCE_PATH", "other.csv")
	t.Setenv("ARIMASTREAM_TIME_LIMIT", "2m")
	t.Setenv("ARIMASTREAM_KAFKA_BROKERS", "a:9092,b:9092")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "other.csv", c.Source.Path)
	assert.Equal(t, 2*time.Minute, c.Search.TimeLimit)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Sink.Kafka.Brokers)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"criterion":    "source: {path: a.csv}\nsearch: {criterion: mle}\n",
		"confidence":   "source: {path: a.csv}\nforecast: {confidence: 1.5}\n",
		"threshold":    "source: {path: a.csv}\nforecast: {gap_threshold: 0.5}\n",
		"csv path":     "source: {type: csv}\n",
		"sql dsn":      "source: {type: sql, sql: {table: cpu}}\n",
		"kafka broker": "source: {path: a.csv}\nsink: {type: kafka}\n",
		"interval":     "source: {path: a.csv, aggregate: {interval: 3x}}\n",
		"stdout clash": "source: {path: a.csv}\nstate: {type: channel}\nlog: {output: stdout}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("ARIMASTREAM_MEMORY_CEILING_MB", "lots")
	_, err := Load(writeConfig(t, "source: {path: a.csv}\n"))
	assert.ErrorContains(t, err, "MEMORY_CEILING_MB")
}
