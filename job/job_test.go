package job

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/arimastream/arima"
	"github.com/sartorproj/arimastream/autoarima"
	"github.com/sartorproj/arimastream/metrics"
	"github.com/sartorproj/arimastream/sink"
	"github.com/sartorproj/arimastream/source"
	"github.com/sartorproj/arimastream/state"
	"github.com/sartorproj/arimastream/timeseries"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

// flat returns n hourly observations of value 2, the steady state of the
// model ar1Trainer produces.
func flat(hours ...int) *timeseries.Series {
	s := &timeseries.Series{}
	for _, h := range hours {
		s.Append(hour(h), 2)
	}
	return s
}

func span(from, to int) []int {
	var hs []int
	for h := from; h < to; h++ {
		hs = append(hs, h)
	}
	return hs
}

// ar1Trainer returns z_t = 1 + 0.5 z_{t-1} for p=1 and a worse-scoring
// constant model for p=0.
type ar1Trainer struct {
	calls int
	fail  bool
}

func (f *ar1Trainer) Train(_ context.Context, values []float64, order arima.Order, _ arima.Options, _ time.Duration) (*arima.Trained, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("did not converge")
	}
	m := &arima.Trained{
		Order:     order,
		Intercept: 2,
		Residuals: make([]float64, len(values)),
		Variance:  1,
		NObs:      len(values),
		Criteria:  map[string]float64{"aic": -float64(order.P)},
	}
	if order.P == 1 {
		m.Intercept = 1
		m.AR = []float64{0.5}
	}
	return m, nil
}

type memoryStore struct {
	blob  string
	saves int
}

func (m *memoryStore) Load(context.Context) (*state.JobState, error) {
	if m.blob == "" {
		return nil, nil
	}
	return state.Decode(m.blob)
}

func (m *memoryStore) Save(_ context.Context, s *state.JobState) error {
	blob, err := state.Encode(s)
	if err != nil {
		return err
	}
	m.blob = blob
	m.saves++
	return nil
}

type memoryBackend struct {
	sets map[string][]sink.Record
}

func (m *memoryBackend) Insert(_ context.Context, set string, records []sink.Record) error {
	m.sets[set] = append(m.sets[set], records...)
	return nil
}

func (m *memoryBackend) Clear(_ context.Context, set string) error {
	delete(m.sets, set)
	return nil
}

func (m *memoryBackend) Close() error { return nil }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Search.Bounds = autoarima.Bounds{MaxP: 1}
	cfg.Ahead = 3
	return cfg
}

type fixture struct {
	store   *memoryStore
	backend *memoryBackend
	trainer *ar1Trainer
	reg     *prometheus.Registry
	rec     *metrics.Recorder
}

func newFixture() *fixture {
	reg := prometheus.NewRegistry()
	return &fixture{
		store:   &memoryStore{},
		backend: &memoryBackend{sets: map[string][]sink.Record{}},
		trainer: &ar1Trainer{},
		reg:     reg,
		rec:     metrics.New(reg),
	}
}

func (f *fixture) job(series *timeseries.Series, cfg Config) *Job {
	writer := sink.NewWriter(f.backend, sink.Sets{}, 0, f.rec)
	ids := 0
	return New(source.NewSeriesReader(series), f.store, writer, f.trainer, cfg,
		WithMetrics(f.rec),
		WithClock(func() time.Time { return hour(100) }),
		WithRunID(func() string {
			ids++
			return "run-" + string(rune('0'+ids))
		}),
	)
}

func TestFirstRun(t *testing.T) {
	f := newFixture()
	report, err := f.job(flat(span(0, 40)...), testConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ModeTrain, report.Mode)
	assert.Equal(t, arima.Order{P: 1}, report.Model.Order)
	assert.Equal(t, 2, f.trainer.calls)
	assert.Equal(t, 10, report.Observations, "a quarter of the data validates")
	assert.Zero(t, report.Filled)
	assert.InDelta(t, 0, report.RMSE, 1e-12)
	assert.InDelta(t, 0, report.Model.RMSE, 1e-12)

	for h := 1; h <= 3; h++ {
		assert.Len(t, f.backend.sets["ahead_"+string(rune('0'+h))], 10)
	}
	future := f.backend.sets["future"]
	require.Len(t, future, 3)
	assert.Equal(t, hour(40), future[0].Timestamp)
	assert.Equal(t, hour(42), future[2].Timestamp)
	for _, r := range future {
		assert.InDelta(t, 2, r.Value, 1e-12)
		assert.Less(t, r.Low, r.Value)
		assert.Greater(t, r.High, r.Value)
	}

	require.Equal(t, 1, f.store.saves)
	s, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", s.Run.ID)
	assert.Equal(t, 1, s.Run.Count)
	assert.WithinDuration(t, hour(39), s.Delta.Last, 0)
	assert.Equal(t, time.Hour, s.Delta.Step)
	assert.Equal(t, []float64{2}, s.Predictor.Data)
	assert.WithinDuration(t, hour(39), s.Reader.Start, 0)

	n, err := testutil.GatherAndCount(f.reg, "arimastream_job_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResumeHealsGapAndRewritesFuture(t *testing.T) {
	f := newFixture()
	_, err := f.job(flat(span(0, 40)...), testConfig()).Run(context.Background())
	require.NoError(t, err)
	f.trainer.calls = 0

	more := flat(append(span(0, 42), 44, 45)...)
	report, err := f.job(more, testConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ModeResume, report.Mode)
	assert.Zero(t, f.trainer.calls, "resuming never retrains")
	assert.Equal(t, 4, report.Observations)
	assert.Equal(t, 2, report.Filled)
	assert.Equal(t, arima.Order{P: 1}, report.Model.Order)

	future := f.backend.sets["future"]
	require.Len(t, future, 3, "future curve is replaced, not extended")
	assert.Equal(t, hour(46), future[0].Timestamp)
	assert.Len(t, f.backend.sets["ahead_1"], 14)

	s, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Run.Count)
	assert.WithinDuration(t, hour(45), s.Delta.Last, 0)
	assert.WithinDuration(t, hour(45), s.Reader.Start, 0)
}

func TestResumeWithoutNewData(t *testing.T) {
	f := newFixture()
	series := flat(span(0, 40)...)
	_, err := f.job(series, testConfig()).Run(context.Background())
	require.NoError(t, err)

	report, err := f.job(series, testConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Observations)
	assert.True(t, math.IsNaN(report.RMSE))
	assert.Len(t, report.Future, 3)
	assert.Equal(t, 2, f.store.saves)
}

func TestEmptySource(t *testing.T) {
	f := newFixture()
	_, err := f.job(&timeseries.Series{}, testConfig()).Run(context.Background())
	assert.ErrorIs(t, err, ErrEmptySource)
	assert.Zero(t, f.store.saves)
}

func TestNoModelLeavesStateUntouched(t *testing.T) {
	f := newFixture()
	f.trainer.fail = true
	_, err := f.job(flat(span(0, 40)...), testConfig()).Run(context.Background())
	assert.ErrorIs(t, err, autoarima.ErrNoModel)
	assert.Zero(t, f.store.saves)
	assert.Empty(t, f.backend.sets)
}

func TestMalformedStateIsFatal(t *testing.T) {
	f := newFixture()
	f.store.blob = "definitely not a state"
	_, err := f.job(flat(span(0, 40)...), testConfig()).Run(context.Background())
	assert.ErrorIs(t, err, state.ErrMalformedState)
	assert.Zero(t, f.trainer.calls, "no fallback to fresh training")
	assert.Zero(t, f.store.saves)
	assert.Equal(t, "definitely not a state", f.store.blob)
}
