package source

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/arimastream/database"
	"github.com/sartorproj/arimastream/timeseries"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func minutes(values map[int]float64, order []int) *timeseries.Series {
	s := &timeseries.Series{}
	for _, m := range order {
		s.Append(t0.Add(time.Duration(m)*time.Minute), values[m])
	}
	return s
}

func regular(n int) *timeseries.Series {
	s := &timeseries.Series{}
	for i := 0; i < n; i++ {
		s.Append(t0.Add(time.Duration(i)*time.Minute), float64(i))
	}
	return s
}

func TestSeriesReaderPaging(t *testing.T) {
	ctx := context.Background()
	r := NewSeriesReader(regular(5))

	s, err := r.Read(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, s.Values)
	assert.Equal(t, Position{Start: t0.Add(time.Minute)}, r.Position())

	s, err = r.Read(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, s.Values)

	s, err = r.Read(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, s.Values)

	s, err = r.Read(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestSeriesReaderSeek(t *testing.T) {
	ctx := context.Background()
	r := NewSeriesReader(regular(5))

	r.Seek(Position{Start: t0.Add(2 * time.Minute), Inclusive: true})
	s, err := ReadAll(ctx, r, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, s.Values)

	r.Seek(Position{Start: t0.Add(2 * time.Minute)})
	s, err = ReadAll(ctx, r, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, s.Values)
}

func TestReadAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadAll(ctx, NewSeriesReader(regular(3)), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCSVReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte("ds,y\n2024-01-01T00:00:00Z,1\n2024-01-01T01:00:00Z,2\n2024-01-01T02:00:00Z,3\n"), 0o644))

	r, err := NewCSVReader(path, nil)
	require.NoError(t, err)
	s, err := ReadAll(context.Background(), r, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, s.Values)
	assert.Equal(t, t0.Add(2*time.Hour), r.Position().Start)

	_, err = NewCSVReader(filepath.Join(t.TempDir(), "missing.csv"), nil)
	assert.Error(t, err)
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{Driver: database.DriverSQLite, DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("CREATE TABLE obs (ts INTEGER NOT NULL, value REAL)")
	require.NoError(t, err)
	return db
}

func insert(t *testing.T, db *sql.DB, s *timeseries.Series) {
	t.Helper()
	for i, v := range s.Values {
		_, err := db.Exec("INSERT INTO obs (ts, value) VALUES (?, ?)", s.Timestamps[i].UnixMilli(), v)
		require.NoError(t, err)
	}
}

func TestSQLReader(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	insert(t, db, regular(5))
	_, err := db.Exec("INSERT INTO obs (ts, value) VALUES (?, NULL)", t0.Add(10*time.Minute).UnixMilli())
	require.NoError(t, err)

	r, err := NewSQLReader(db, SQLConfig{Table: "obs", TimeColumn: "ts", ValueColumn: "value"})
	require.NoError(t, err)

	s, err := r.Read(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, s.Values)
	assert.Equal(t, t0.Add(2*time.Minute), s.Timestamps[2])

	s, err = ReadAll(ctx, r, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, s.Values)
	assert.Equal(t, t0.Add(10*time.Minute), r.Position().Start, "NULL rows advance the position")

	// A later run resumes after new rows arrive.
	pos := r.Position()
	insert(t, db, minutes(map[int]float64{11: 11, 12: 12}, []int{11, 12}))
	resumed, err := NewSQLReader(db, SQLConfig{Table: "obs", TimeColumn: "ts", ValueColumn: "value"})
	require.NoError(t, err)
	resumed.Seek(pos)
	s, err = ReadAll(ctx, resumed, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 12}, s.Values)

	resumed.Seek(Position{Start: t0.Add(4 * time.Minute), Inclusive: true})
	s, err = resumed.Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, s.Values)
}

func TestSQLReaderRejectsIdentifiers(t *testing.T) {
	_, err := NewSQLReader(nil, SQLConfig{Table: "obs; DROP TABLE obs", TimeColumn: "ts", ValueColumn: "value"})
	assert.Error(t, err)
}

func aggFixture() *timeseries.Series {
	values := map[int]float64{}
	var order []int
	for m := 0; m < 10; m++ {
		values[m] = 1
		order = append(order, m)
	}
	for m := 10; m < 20; m++ {
		values[m] = 3
		order = append(order, m)
	}
	for m := 40; m < 45; m++ {
		values[m] = 9
		order = append(order, m)
	}
	values[50] = 100
	order = append(order, 50)
	return minutes(values, order)
}

func at(mins ...int) []time.Time {
	out := make([]time.Time, len(mins))
	for i, m := range mins {
		out[i] = t0.Add(time.Duration(m) * time.Minute)
	}
	return out
}

func TestAggReader(t *testing.T) {
	ctx := context.Background()
	iv, err := timeseries.ParseInterval("10m")
	require.NoError(t, err)

	r, err := NewAggReader(NewSeriesReader(aggFixture()), iv, AggAvg)
	require.NoError(t, err)

	s, err := r.Read(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, at(0, 10, 20, 30, 40), s.Timestamps)
	assert.InDeltaSlice(t, []float64{1, 3, 5, 7, 9}, s.Values, 1e-12)
	assert.Equal(t, Position{Start: t0.Add(50 * time.Minute), Inclusive: true}, r.Position())

	s, err = r.Read(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, s.Len(), "the newest bucket is held back")
}

func TestAggReaderSmallBatches(t *testing.T) {
	ctx := context.Background()
	iv, err := timeseries.ParseInterval("10m")
	require.NoError(t, err)
	r, err := NewAggReader(NewSeriesReader(aggFixture()), iv, AggAvg)
	require.NoError(t, err)

	all, err := ReadAll(ctx, r, 2)
	require.NoError(t, err)
	assert.Equal(t, at(0, 10, 20, 30, 40), all.Timestamps)
	assert.InDeltaSlice(t, []float64{1, 3, 5, 7, 9}, all.Values, 1e-12)
}

func TestAggReaderResume(t *testing.T) {
	ctx := context.Background()
	iv, err := timeseries.ParseInterval("10m")
	require.NoError(t, err)

	first, err := NewAggReader(NewSeriesReader(aggFixture()), iv, AggSum)
	require.NoError(t, err)
	_, err = ReadAll(ctx, first, 0)
	require.NoError(t, err)
	pos := first.Position()

	// More data completes the held-back bucket.
	more := aggFixture()
	more.Append(t0.Add(55*time.Minute), 1)
	more.Append(t0.Add(61*time.Minute), 1)

	second, err := NewAggReader(NewSeriesReader(more), iv, AggSum)
	require.NoError(t, err)
	second.Seek(pos)
	s, err := ReadAll(ctx, second, 0)
	require.NoError(t, err)
	assert.Equal(t, at(50), s.Timestamps)
	assert.Equal(t, []float64{101}, s.Values)
}

func TestAggregate(t *testing.T) {
	values := []float64{4, 1, 7}
	assert.Equal(t, 4.0, aggregate(AggAvg, values))
	assert.Equal(t, 1.0, aggregate(AggMin, values))
	assert.Equal(t, 7.0, aggregate(AggMax, values))
	assert.Equal(t, 12.0, aggregate(AggSum, values))
	assert.Equal(t, 3.0, aggregate(AggCount, values))

	_, err := NewAggReader(NewSeriesReader(regular(1)), timeseries.Interval{Count: 1, Unit: "h"}, "median")
	assert.Error(t, err)
}
