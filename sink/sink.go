// Package sink writes forecasts to per-horizon "ahead" sets and a rolling
// "future" set.
package sink

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sartorproj/arimastream/metrics"
)

// DefaultBufferSize is the number of buffered records that triggers a flush.
const DefaultBufferSize = 1000

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("write on closed predictions writer")

// Record is one forecast.
type Record struct {
	Timestamp time.Time `json:"ts"`
	Value     float64   `json:"value"`
	Low       float64   `json:"low"`
	High      float64   `json:"high"`
}

// Backend stores records grouped in named sets.
type Backend interface {
	Insert(ctx context.Context, set string, records []Record) error
	Clear(ctx context.Context, set string) error
	Close() error
}

// Sets names the destinations. Ahead set h is named "<Ahead>_<h>".
type Sets struct {
	Future string `yaml:"future" default:"future"`
	Ahead  string `yaml:"ahead" default:"ahead"`
}

// AheadSet returns the name of the set holding h-step-ahead forecasts.
func (s Sets) AheadSet(h int) string {
	return fmt.Sprintf("%s_%d", s.Ahead, h)
}

// Writer buffers records per set and flushes them to a Backend once
// bufferSize records are pending. It is not safe for concurrent use.
type Writer struct {
	backend    Backend
	sets       Sets
	bufferSize int
	metrics    *metrics.Recorder

	order   []string
	pending map[string][]Record
	count   int
	closed  bool
}

// NewWriter creates a writer over b. A non-positive bufferSize uses the default.
func NewWriter(b Backend, sets Sets, bufferSize int, m *metrics.Recorder) *Writer {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if sets.Future == "" {
		sets.Future = "future"
	}
	if sets.Ahead == "" {
		sets.Ahead = "ahead"
	}
	return &Writer{
		backend:    b,
		sets:       sets,
		bufferSize: bufferSize,
		metrics:    m,
		pending:    make(map[string][]Record),
	}
}

// WriteAhead buffers rec as an h-step-ahead forecast.
func (w *Writer) WriteAhead(ctx context.Context, rec Record, h int) error {
	return w.write(ctx, w.sets.AheadSet(h), rec)
}

// WriteFuture buffers rec as part of the rolling forecast curve.
func (w *Writer) WriteFuture(ctx context.Context, rec Record) error {
	return w.write(ctx, w.sets.Future, rec)
}

func (w *Writer) write(ctx context.Context, set string, rec Record) error {
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.pending[set]; !ok {
		w.order = append(w.order, set)
	}
	w.pending[set] = append(w.pending[set], rec)
	w.count++
	if w.count >= w.bufferSize {
		return w.Flush(ctx)
	}
	return nil
}

// ClearFuture drops buffered and stored future records.
func (w *Writer) ClearFuture(ctx context.Context) error {
	if w.closed {
		return ErrClosed
	}
	w.count -= len(w.pending[w.sets.Future])
	delete(w.pending, w.sets.Future)
	w.order = slices.DeleteFunc(w.order, func(s string) bool { return s == w.sets.Future })
	if err := w.backend.Clear(ctx, w.sets.Future); err != nil {
		return fmt.Errorf("clear %s: %w", w.sets.Future, err)
	}
	return nil
}

// Flush writes every buffered record, set by set in first-write order.
func (w *Writer) Flush(ctx context.Context) error {
	for _, set := range w.order {
		recs := w.pending[set]
		if len(recs) == 0 {
			continue
		}
		if err := w.backend.Insert(ctx, set, recs); err != nil {
			return fmt.Errorf("insert into %s: %w", set, err)
		}
		w.metrics.RecordPredictions(set, len(recs))
		w.count -= len(recs)
		delete(w.pending, set)
	}
	w.order = w.order[:0]
	return nil
}

// Close flushes and closes the backend.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.Flush(ctx)
	return errors.Join(err, w.backend.Close())
}
