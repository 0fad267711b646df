// Package timeseries provides core time series data structures and operations.
package timeseries

import (
	"errors"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrLengthMismatch is returned when timestamps and values disagree in length.
var ErrLengthMismatch = errors.New("timestamps and values must have the same length")

// Epoch is the base timestamp of series created without explicit timestamps.
var Epoch = time.Unix(0, 0).UTC()

// Series represents a time series with timestamps and values.
type Series struct {
	Timestamps []time.Time
	Values     []float64
	Name       string
}

// New creates a new time series from values, spaced one hour apart from Epoch.
func New(values []float64) *Series {
	timestamps := make([]time.Time, len(values))
	for i := range timestamps {
		timestamps[i] = Epoch.Add(time.Duration(i) * time.Hour)
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}
}

// NewWithTimestamps creates a time series with explicit timestamps.
func NewWithTimestamps(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, ErrLengthMismatch
	}
	return &Series{
		Timestamps: timestamps,
		Values:     values,
	}, nil
}

// Len returns the length of the series.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// Mean calculates the arithmetic mean of the series.
func (s *Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return stat.Mean(s.Values, nil)
}

// Variance calculates the unbiased sample variance of the series.
func (s *Series) Variance() float64 {
	if len(s.Values) < 2 {
		return 0
	}
	return stat.Variance(s.Values, nil)
}

// Median returns the median value of the series.
func (s *Series) Median() float64 {
	if len(s.Values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(s.Values)
	slices.Sort(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Last returns the final timestamp and value. ok is false for an empty series.
func (s *Series) Last() (ts time.Time, v float64, ok bool) {
	n := s.Len()
	if n == 0 {
		return time.Time{}, 0, false
	}
	if len(s.Timestamps) == n {
		ts = s.Timestamps[n-1]
	}
	return ts, s.Values[n-1], true
}

// Append adds one observation to the end of the series.
func (s *Series) Append(ts time.Time, v float64) {
	s.Timestamps = append(s.Timestamps, ts)
	s.Values = append(s.Values, v)
}

// Concat appends every observation of other.
func (s *Series) Concat(other *Series) {
	if other == nil {
		return
	}
	s.Timestamps = append(s.Timestamps, other.Timestamps...)
	s.Values = append(s.Values, other.Values...)
}

// Diff calculates the first difference of the series (d=1).
func (s *Series) Diff() *Series {
	return s.lagDiff(1, "_diff")
}

// DiffN applies first differencing n times.
func (s *Series) DiffN(n int) *Series {
	if n <= 0 {
		return s.Copy()
	}
	out := s
	for i := 0; i < n; i++ {
		out = out.Diff()
	}
	return out
}

// SeasonalDiff calculates the seasonal difference with period m.
func (s *Series) SeasonalDiff(m int) *Series {
	return s.lagDiff(m, "_seasonal_diff")
}

func (s *Series) lagDiff(lag int, suffix string) *Series {
	if lag <= 0 || len(s.Values) <= lag {
		return &Series{Values: []float64{}, Name: s.Name + suffix}
	}

	result := make([]float64, len(s.Values)-lag)
	for i := lag; i < len(s.Values); i++ {
		result[i-lag] = s.Values[i] - s.Values[i-lag]
	}

	timestamps := make([]time.Time, len(result))
	if len(s.Timestamps) > lag {
		copy(timestamps, s.Timestamps[lag:])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     result,
		Name:       s.Name + suffix,
	}
}

// Slice returns a slice of the series from start to end (exclusive).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > len(s.Values) {
		end = len(s.Values)
	}
	if start >= end {
		return &Series{Values: []float64{}, Name: s.Name}
	}

	values := make([]float64, end-start)
	copy(values, s.Values[start:end])

	timestamps := make([]time.Time, len(values))
	if len(s.Timestamps) >= end {
		copy(timestamps, s.Timestamps[start:end])
	}

	return &Series{
		Timestamps: timestamps,
		Values:     values,
		Name:       s.Name,
	}
}

// Split cuts the series at floor(fraction*Len()) into a head and a tail.
func (s *Series) Split(fraction float64) (head, tail *Series) {
	cut := int(fraction * float64(s.Len()))
	return s.Slice(0, cut), s.Slice(cut, s.Len())
}

// Copy creates a deep copy of the series.
func (s *Series) Copy() *Series {
	return &Series{
		Timestamps: slices.Clone(s.Timestamps),
		Values:     slices.Clone(s.Values),
		Name:       s.Name,
	}
}
