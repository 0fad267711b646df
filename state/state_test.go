package state

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/arimastream/arima"
	"github.com/sartorproj/arimastream/forecast"
	"github.com/sartorproj/arimastream/source"
	"github.com/sartorproj/arimastream/timeseries"
)

func sample() *JobState {
	last := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &JobState{
		Predictor: forecast.State{
			Data:      []float64{10, 11.5, 12},
			Residuals: []float64{0.1, -0.2, 0.3},
			Intercept: 0.4,
			AR:        []float64{0.5, 0.1},
			MA:        []float64{0.2},
			D:         1,
			Variance:  0.9,
		},
		Delta:  timeseries.Delta{Last: last, Step: time.Hour},
		Reader: source.Position{Start: last},
		Model: ModelInfo{
			Order:     arima.Order{P: 2, D: 1, Q: 1},
			Criterion: "aic",
			Value:     123.4,
			TrainedAt: last,
			RMSE:      0.7,
		},
		Run: RunInfo{ID: "run-1", Count: 3, Finished: last},
	}
}

func TestEncodeDecode(t *testing.T) {
	s := sample()
	blob, err := Encode(s)
	require.NoError(t, err)
	assert.NotContains(t, blob, "\n")

	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, Version, got.Version)
	assert.Equal(t, s.Predictor, got.Predictor)
	assert.Equal(t, s.Model.Order, got.Model.Order)
	assert.True(t, s.Delta.Last.Equal(got.Delta.Last))
	assert.Equal(t, s.Delta.Step, got.Delta.Step)
	assert.True(t, s.Reader.Start.Equal(got.Reader.Start))
	assert.Equal(t, s.Run.ID, got.Run.ID)
	assert.Zero(t, s.Version, "Encode must not modify its argument")

	p, err := forecast.FromState(got.Predictor)
	require.NoError(t, err)
	assert.Equal(t, 3, p.MaxSize())
}

func TestDecodeMalformed(t *testing.T) {
	wrongLengths := sample()
	wrongLengths.Predictor.Residuals = nil
	badBlob, err := Encode(wrongLengths)
	require.NoError(t, err)

	cases := map[string]string{
		"not base64": "%%%",
		"not zstd":   base64.StdEncoding.EncodeToString([]byte("plain")),
		"invariants": badBlob,
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(blob)
			assert.ErrorIs(t, err, ErrMalformedState)
		})
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	store := FileStore{Path: filepath.Join(t.TempDir(), "jobs", "state")}

	s, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, s, "missing file means first run")

	require.NoError(t, store.Save(ctx, sample()))
	s, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "run-1", s.Run.ID)

	entries, err := os.ReadDir(filepath.Dir(store.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	require.NoError(t, os.WriteFile(store.Path, []byte("garbage"), 0o644))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrMalformedState)
}

// fakeRedis implements the two commands RedisStore uses.
type fakeRedis struct {
	redis.Cmdable
	values map[string]string
	err    error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch v, ok := f.values[key]; {
	case f.err != nil:
		cmd.SetErr(f.err)
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(v)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.values[key] = value.(string)
	cmd.SetVal("OK")
	return cmd
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := &fakeRedis{values: map[string]string{}}
	store := NewRedisStore(client, "arimastream:job:cpu")

	s, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, store.Save(ctx, sample()))
	assert.Contains(t, client.values, "arimastream:job:cpu")
	s, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Run.Count)

	client.err = errors.New("connection refused")
	_, err = store.Load(ctx)
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, ErrMalformedState)
}

func TestChannelStore(t *testing.T) {
	ctx := context.Background()
	blob, err := Encode(sample())
	require.NoError(t, err)

	in := strings.NewReader(`{"state":"` + blob + `"}` + "\n" + `{"ignored":true}` + "\n")
	var out bytes.Buffer
	store := NewChannelStore(in, &out)

	s, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, s, again)

	require.NoError(t, store.Save(ctx, s))
	var msg map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &msg))
	assert.Equal(t, "store_state", msg["type"])
	decoded, err := Decode(msg["state"])
	require.NoError(t, err)
	assert.Equal(t, s.Predictor, decoded.Predictor)
}

func TestChannelStoreFirstRun(t *testing.T) {
	for name, input := range map[string]string{
		"null":  `{"state":null}` + "\n",
		"empty": "",
		"blank": `{"state":""}`,
	} {
		t.Run(name, func(t *testing.T) {
			s, err := NewChannelStore(strings.NewReader(input), &bytes.Buffer{}).Load(context.Background())
			require.NoError(t, err)
			assert.Nil(t, s)
		})
	}

	_, err := NewChannelStore(strings.NewReader("{not json}\n"), &bytes.Buffer{}).Load(context.Background())
	assert.ErrorIs(t, err, ErrMalformedState)
}
