package source

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/arimastream/timeseries"
)

// Aggregation functions.
const (
	AggAvg   = "avg"
	AggMin   = "min"
	AggMax   = "max"
	AggSum   = "sum"
	AggCount = "count"
)

func aggregate(fn string, values []float64) float64 {
	switch fn {
	case AggMin:
		return floats.Min(values)
	case AggMax:
		return floats.Max(values)
	case AggSum:
		return floats.Sum(values)
	case AggCount:
		return float64(len(values))
	default:
		return stat.Mean(values, nil)
	}
}

// AggReader resamples another reader into fixed buckets. The newest bucket
// is never returned because more observations may still fall into it;
// Position points at its start so a later run reads it again. Empty buckets
// between two populated ones are filled by linear interpolation.
type AggReader struct {
	inner    Reader
	interval timeseries.Interval
	fn       string
	rawBatch int

	pending   *timeseries.Series
	exhausted bool
	pos       Position

	// last emitted bucket, the left anchor for interpolation
	anchorTS  time.Time
	anchorVal float64
}

// NewAggReader buckets inner by interval using fn (avg, min, max, sum or count).
func NewAggReader(inner Reader, interval timeseries.Interval, fn string) (*AggReader, error) {
	switch fn {
	case "":
		fn = AggAvg
	case AggAvg, AggMin, AggMax, AggSum, AggCount:
	default:
		return nil, fmt.Errorf("unknown aggregation %q", fn)
	}
	return &AggReader{
		inner:    inner,
		interval: interval,
		fn:       fn,
		rawBatch: DefaultBatchSize,
		pending:  &timeseries.Series{},
		pos:      inner.Position(),
	}, nil
}

type bucket struct {
	start  time.Time
	values []float64
}

// Read returns at most batch buckets.
func (r *AggReader) Read(ctx context.Context, batch int) (*timeseries.Series, error) {
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	// Read until the pending observations span more than batch buckets, so
	// the last one can be held back.
	for !r.exhausted && len(r.buckets()) <= batch {
		s, err := r.inner.Read(ctx, r.rawBatch)
		if err != nil {
			return nil, err
		}
		if s.Len() == 0 {
			r.exhausted = true
			break
		}
		r.pending.Concat(s)
	}

	buckets := r.buckets()
	if len(buckets) < 2 {
		return &timeseries.Series{}, nil
	}
	complete := buckets[:len(buckets)-1]

	out := &timeseries.Series{}
	emitted := 0
	for _, b := range complete {
		v := aggregate(r.fn, b.values)
		if !r.anchorTS.IsZero() {
			r.interpolate(out, b.start, v, batch-emitted)
			emitted = out.Len()
		}
		if emitted >= batch {
			break
		}
		out.Append(b.start, v)
		emitted++
		r.anchorTS, r.anchorVal = b.start, v
		if emitted >= batch {
			break
		}
	}

	// Drop the raw observations of everything emitted.
	next := r.interval.Add(r.anchorTS, 1)
	keep := 0
	for keep < r.pending.Len() && r.pending.Timestamps[keep].Before(next) {
		keep++
	}
	r.pending = r.pending.Slice(keep, r.pending.Len())
	r.pos = Position{Start: next, Inclusive: true}
	return out, nil
}

// interpolate appends at most limit values for the empty buckets between
// the anchor and the populated bucket at ts.
func (r *AggReader) interpolate(out *timeseries.Series, ts time.Time, v float64, limit int) {
	var gap []time.Time
	for b := r.interval.Add(r.anchorTS, 1); b.Before(ts); b = r.interval.Add(b, 1) {
		gap = append(gap, b)
	}
	if len(gap) == 0 {
		return
	}
	step := (v - r.anchorVal) / float64(len(gap)+1)
	for i, b := range gap {
		if i >= limit {
			return
		}
		val := r.anchorVal + step
		out.Append(b, val)
		r.anchorTS, r.anchorVal = b, val
	}
}

func (r *AggReader) buckets() []bucket {
	var out []bucket
	for i, ts := range r.pending.Timestamps {
		start := r.interval.Truncate(ts)
		if len(out) == 0 || !out[len(out)-1].start.Equal(start) {
			out = append(out, bucket{start: start})
		}
		out[len(out)-1].values = append(out[len(out)-1].values, r.pending.Values[i])
	}
	return out
}

// Position returns the start of the first bucket not yet returned.
func (r *AggReader) Position() Position { return r.pos }

// Seek restarts reading at p, dropping buffered observations.
func (r *AggReader) Seek(p Position) {
	r.pos = p
	r.inner.Seek(p)
	r.pending = &timeseries.Series{}
	r.exhausted = false
	r.anchorTS = time.Time{}
}
