package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regularTimestamps(n int, step time.Duration) []time.Time {
	ts := make([]time.Time, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * step)
	}
	return ts
}

func TestEstimateDeltaRegular(t *testing.T) {
	ts := regularTimestamps(50, 15*time.Minute)

	d, err := EstimateDelta(ts, 0)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d.Step)
	assert.Equal(t, ts[49], d.Last)
}

func TestEstimateDeltaToleratesMissingSample(t *testing.T) {
	ts := regularTimestamps(40, time.Minute)
	ts = append(ts[:10], ts[11:]...)

	d, err := EstimateDelta(ts, 1000)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d.Step)
}

func TestEstimateDeltaSampleSize(t *testing.T) {
	ts := regularTimestamps(10, time.Second)
	for i := 1; i <= 10; i++ {
		ts = append(ts, ts[len(ts)-1].Add(time.Hour))
	}

	d, err := EstimateDelta(ts, 10)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d.Step)
	assert.Equal(t, ts[len(ts)-1], d.Last)
}

func TestEstimateDeltaErrors(t *testing.T) {
	_, err := EstimateDelta(regularTimestamps(1, time.Second), 10)
	assert.Error(t, err)

	same := []time.Time{Epoch, Epoch, Epoch}
	_, err = EstimateDelta(same, 10)
	assert.ErrorIs(t, err, ErrIrregular)
}

func TestDeltaClock(t *testing.T) {
	d := Delta{Last: Epoch, Step: time.Minute}

	assert.Equal(t, Epoch.Add(time.Minute), d.Peek())
	assert.Equal(t, Epoch, d.Last)

	preview := d
	assert.Equal(t, []time.Time{Epoch.Add(time.Minute), Epoch.Add(2 * time.Minute)}, preview.Next(2))
	assert.Equal(t, Epoch, d.Last)

	assert.Equal(t, Epoch.Add(time.Minute), d.Read())
	assert.Equal(t, Epoch.Add(time.Minute), d.Last)

	d.SetLatest(Epoch.Add(time.Hour))
	assert.InDelta(t, 3.0, d.Steps(Epoch.Add(time.Hour+3*time.Minute)), 1e-12)
}

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in   string
		want Interval
		dur  time.Duration
	}{
		{"15m", Interval{15, "m"}, 15 * time.Minute},
		{"1d", Interval{1, "d"}, 24 * time.Hour},
		{"h", Interval{1, "h"}, time.Hour},
		{"500ms", Interval{500, "ms"}, 500 * time.Millisecond},
		{"2w", Interval{2, "w"}, 14 * 24 * time.Hour},
	}
	for _, c := range cases {
		iv, err := ParseInterval(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, iv)
		assert.Equal(t, c.dur, iv.Duration())
		assert.False(t, iv.Calendar())
	}

	for _, bad := range []string{"", "10", "3x", "0m", "1M0"} {
		_, err := ParseInterval(bad)
		assert.Error(t, err, bad)
	}
}

func TestIntervalCalendar(t *testing.T) {
	q, err := ParseInterval("q")
	require.NoError(t, err)
	require.True(t, q.Calendar())

	at := time.Date(2024, 8, 17, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), q.Truncate(at))
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), q.Add(q.Truncate(at), 1))

	y, err := ParseInterval("1y")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), y.Truncate(at))

	h, err := ParseInterval("6h")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 17, 12, 0, 0, 0, time.UTC), h.Truncate(at))
	assert.Equal(t, time.Date(2024, 8, 17, 18, 0, 0, 0, time.UTC), h.Add(h.Truncate(at), 1))
}
