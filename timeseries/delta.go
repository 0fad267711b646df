package timeseries

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultDeltaSampleSize is the number of leading timestamps EstimateDelta inspects.
const DefaultDeltaSampleSize = 1000

// ErrIrregular is returned when no positive spacing can be estimated.
var ErrIrregular = errors.New("timestamps have no positive spacing")

// Delta is a logical clock that invents future timestamps at a fixed step
// after the last observed one.
type Delta struct {
	Last time.Time     `msgpack:"last" json:"last"`
	Step time.Duration `msgpack:"step" json:"step"`
}

// Peek returns the next timestamp without advancing the clock.
func (d Delta) Peek() time.Time {
	return d.Last.Add(d.Step)
}

// Read advances the clock by one step and returns the new timestamp.
func (d *Delta) Read() time.Time {
	d.Last = d.Peek()
	return d.Last
}

// SetLatest moves the clock to an observed timestamp.
func (d *Delta) SetLatest(ts time.Time) {
	d.Last = ts
}

// Next returns the next n timestamps without advancing the clock.
func (d Delta) Next(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = d.Read()
	}
	return out
}

// Steps returns how many steps ts lies after the last timestamp.
func (d Delta) Steps(ts time.Time) float64 {
	if d.Step <= 0 {
		return 0
	}
	return float64(ts.Sub(d.Last)) / float64(d.Step)
}

// EstimateDelta estimates the sampling period as the median spacing of the
// first sampleSize timestamps. The clock starts at the final timestamp.
func EstimateDelta(timestamps []time.Time, sampleSize int) (Delta, error) {
	if len(timestamps) < 2 {
		return Delta{}, fmt.Errorf("estimate delta: need at least 2 timestamps, got %d", len(timestamps))
	}
	if sampleSize <= 1 {
		sampleSize = DefaultDeltaSampleSize
	}

	sample := timestamps[:min(sampleSize, len(timestamps))]
	diffs := make([]time.Duration, 0, len(sample)-1)
	for i := 1; i < len(sample); i++ {
		diffs = append(diffs, sample[i].Sub(sample[i-1]))
	}
	slices.Sort(diffs)

	n := len(diffs)
	step := diffs[n/2]
	if n%2 == 0 {
		step = diffs[n/2-1] + (diffs[n/2]-diffs[n/2-1])/2
	}
	if step <= 0 {
		return Delta{}, fmt.Errorf("estimate delta: %w", ErrIrregular)
	}
	return Delta{Last: timestamps[len(timestamps)-1], Step: step}, nil
}

// Interval is a calendar-aware bucket width such as "15m", "1d" or "1M".
type Interval struct {
	Count int
	Unit  string
}

var fixedUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
}

var calendarMonths = map[string]int{
	"M": 1,
	"q": 3,
	"y": 12,
}

// ParseInterval parses an interval made of an optional count and a unit:
// ms, s, m, h, d, w, M (month), q (quarter) or y (year).
func ParseInterval(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	split := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if split < 0 {
		return Interval{}, fmt.Errorf("%q is not a valid interval", s)
	}

	count := 1
	if split > 0 {
		n, err := strconv.Atoi(s[:split])
		if err != nil || n <= 0 {
			return Interval{}, fmt.Errorf("%q is not a valid interval", s)
		}
		count = n
	}

	unit := s[split:]
	if _, ok := fixedUnits[unit]; !ok {
		if _, ok := calendarMonths[unit]; !ok {
			return Interval{}, fmt.Errorf("%q is not a valid interval", s)
		}
	}
	return Interval{Count: count, Unit: unit}, nil
}

// String formats the interval the way ParseInterval reads it.
func (iv Interval) String() string {
	return strconv.Itoa(iv.Count) + iv.Unit
}

// Calendar reports whether the interval is measured in months.
func (iv Interval) Calendar() bool {
	_, ok := calendarMonths[iv.Unit]
	return ok
}

// Duration returns the fixed length of the interval; months count as 30 days.
func (iv Interval) Duration() time.Duration {
	if d, ok := fixedUnits[iv.Unit]; ok {
		return time.Duration(iv.Count) * d
	}
	return time.Duration(iv.Count*calendarMonths[iv.Unit]) * 30 * 24 * time.Hour
}

// Add moves t forward by n intervals.
func (iv Interval) Add(t time.Time, n int) time.Time {
	if months, ok := calendarMonths[iv.Unit]; ok {
		return t.AddDate(0, n*iv.Count*months, 0)
	}
	return t.Add(time.Duration(n) * iv.Duration())
}

// Truncate returns the start of the bucket containing t. Fixed intervals are
// aligned as time.Time.Truncate aligns them, calendar intervals to the start
// of the year.
func (iv Interval) Truncate(t time.Time) time.Time {
	months, ok := calendarMonths[iv.Unit]
	if !ok {
		return t.Truncate(iv.Duration())
	}
	width := iv.Count * months
	m := (int(t.Month()) - 1) / width * width
	return time.Date(t.Year(), time.Month(m+1), 1, 0, 0, 0, 0, t.Location())
}
