package timeseries

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSVFromReader(t *testing.T) {
	csvData := `ds,y
2020-01-01,100
2020-01-02,101
2020-01-03,102
2020-01-04,103
2020-01-05,104`

	series, err := LoadCSVFromReader(strings.NewReader(csvData), nil)
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 101, 102, 103, 104}, series.Values)
	require.Len(t, series.Timestamps, 5)
	assert.Equal(t, time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC), series.Timestamps[2])
}

func TestLoadCSVWithFilter(t *testing.T) {
	csvData := `unique_id,ds,y
A,2020-01-01,100
B,2020-01-01,200
A,2020-01-02,101
B,2020-01-02,201
A,2020-01-03,102`

	opts := DefaultCSVOptions()
	opts.IDColumn = "unique_id"
	opts.IDFilter = "A"

	series, err := LoadCSVFromReader(strings.NewReader(csvData), opts)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 102}, series.Values)
}

func TestLoadCSVWithNAValues(t *testing.T) {
	csvData := `ds,y
2020-01-01,100
2020-01-02,NA
2020-01-03,102
2020-01-04,NaN
2020-01-05,104`

	series, err := LoadCSVFromReader(strings.NewReader(csvData), nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 102, 104}, series.Values)
}

func TestLoadCSVSelectsColumn(t *testing.T) {
	csvData := `ds,Beer,Cement,Gas
2020-01-01,100,200,50
2020-01-02,110,210,55
2020-01-03,120,220,60`

	opts := DefaultCSVOptions()
	opts.ValueColumn = "Cement"

	series, err := LoadCSVFromReader(strings.NewReader(csvData), opts)
	require.NoError(t, err)
	assert.Equal(t, []float64{200, 210, 220}, series.Values)
}

func TestLoadCSVEmpty(t *testing.T) {
	_, err := LoadCSVFromReader(strings.NewReader("ds,y\n"), nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-01T10:00:00Z": time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		"2024-03-01 10:00:00":  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		"2024-03-01":           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"2021":                 time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		"1700000000":           time.Unix(1700000000, 0).UTC(),
		"1700000000123":        time.UnixMilli(1700000000123).UTC(),
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in, time.RFC3339)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s: got %v", in, got)
	}

	_, err := ParseTimestamp("yesterday", "")
	assert.Error(t, err)
}

func TestSaveCSVRoundTrip(t *testing.T) {
	s, err := NewWithTimestamps(
		[]time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)},
		[]float64{1.5, 2.25},
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, s))
	assert.Equal(t, "ds,y\n2024-01-01T00:00:00Z,1.5\n2024-01-01T01:00:00Z,2.25\n", buf.String())

	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, SaveCSV(s, path))
	loaded, err := LoadCSV(path, nil)
	require.NoError(t, err)
	assert.Equal(t, s.Values, loaded.Values)
	assert.True(t, s.Timestamps[1].Equal(loaded.Timestamps[1]))
}
