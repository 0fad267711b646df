// Package source reads observations in time order, in batches, resuming
// where a previous run stopped.
package source

import (
	"context"
	"time"

	"github.com/sartorproj/arimastream/timeseries"
)

// DefaultBatchSize is the default number of observations per Read.
const DefaultBatchSize = 10000

// Position marks where the next read starts. A zero Start reads from the
// beginning.
type Position struct {
	Start     time.Time `msgpack:"start" json:"start"`
	Inclusive bool      `msgpack:"inclusive" json:"inclusive"`
}

// admits reports whether ts lies at or past the position.
func (p Position) admits(ts time.Time) bool {
	if p.Start.IsZero() {
		return true
	}
	if p.Inclusive {
		return !ts.Before(p.Start)
	}
	return ts.After(p.Start)
}

// Reader yields observations in ascending time order.
type Reader interface {
	// Read returns at most batch observations after the current position
	// and advances it. An empty series means no more data is available.
	Read(ctx context.Context, batch int) (*timeseries.Series, error)
	// Position returns where the next Read starts.
	Position() Position
	// Seek moves the reader to p.
	Seek(p Position)
}

// ReadAll reads until r is exhausted.
func ReadAll(ctx context.Context, r Reader, batch int) (*timeseries.Series, error) {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	all := &timeseries.Series{}
	for {
		s, err := r.Read(ctx, batch)
		if err != nil {
			return nil, err
		}
		if s.Len() == 0 {
			return all, nil
		}
		all.Concat(s)
	}
}

// SeriesReader reads from a series held in memory.
type SeriesReader struct {
	series *timeseries.Series
	pos    Position
}

// NewSeriesReader creates a reader over s, which must be sorted by time.
func NewSeriesReader(s *timeseries.Series) *SeriesReader {
	return &SeriesReader{series: s}
}

// NewCSVReader loads a CSV file and reads it in time order.
func NewCSVReader(path string, opts *timeseries.CSVOptions) (*SeriesReader, error) {
	s, err := timeseries.LoadCSV(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSeriesReader(s), nil
}

func (r *SeriesReader) Read(ctx context.Context, batch int) (*timeseries.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	n := r.series.Len()
	start := 0
	for start < n && !r.pos.admits(r.series.Timestamps[start]) {
		start++
	}
	end := min(start+batch, n)

	out := r.series.Slice(start, end)
	if out.Len() > 0 {
		last, _, _ := out.Last()
		r.pos = Position{Start: last}
	}
	return out, nil
}

func (r *SeriesReader) Position() Position { return r.pos }
func (r *SeriesReader) Seek(p Position)    { r.pos = p }
