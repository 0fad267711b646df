package timeseries

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoData is returned when a CSV source contains no usable rows.
var ErrNoData = errors.New("no valid data found in CSV")

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	DateColumn  string // Column name for timestamps (optional)
	ValueColumn string // Column name for values (default: "y")
	IDColumn    string // Column name for series ID (optional, for filtering)
	IDFilter    string // Value to filter by ID column
	DateFormat  string // Preferred timestamp layout (default: RFC 3339)
	HasHeader   bool   // Whether CSV has header row (default: true)
	Delimiter   rune   // Field delimiter (default: ',')
	SkipRows    int    // Number of rows to skip at start
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		ValueColumn: "y",
		DateFormat:  time.RFC3339,
		HasHeader:   true,
		Delimiter:   ',',
	}
}

var fallbackLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	"2006-01",
	"2006",
}

// ParseTimestamp parses s using layout first, then the common layouts, then
// integer unix seconds or milliseconds.
func ParseTimestamp(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(strings.Trim(s, "\""))
	if layout != "" {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	for _, l := range fallbackLayouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) > 4 {
		if len(s) >= 13 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// LoadCSV loads a time series from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) (*Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads a time series from an io.Reader.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Series, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	for i := 0; i < opts.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, err
		}
	}

	valueIdx, dateIdx, idIdx := 1, 0, -1
	if opts.HasHeader {
		header, err := reader.Read()
		if err != nil {
			return nil, err
		}
		valueIdx, dateIdx, idIdx = columnIndices(header, opts)
	}

	var values []float64
	var timestamps []time.Time
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if opts.IDFilter != "" && idIdx >= 0 && idIdx < len(record) {
			if cell(record, idIdx) != opts.IDFilter {
				continue
			}
		}
		if valueIdx < 0 || valueIdx >= len(record) {
			continue
		}

		raw := cell(record, valueIdx)
		if raw == "" || raw == "NA" || raw == "NaN" || raw == "null" {
			continue
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		values = append(values, val)

		if dateIdx >= 0 && dateIdx < len(record) {
			if ts, err := ParseTimestamp(record[dateIdx], opts.DateFormat); err == nil {
				timestamps = append(timestamps, ts)
			}
		}
	}

	if len(values) == 0 {
		return nil, ErrNoData
	}
	if len(timestamps) == len(values) {
		return &Series{Timestamps: timestamps, Values: values}, nil
	}
	return New(values), nil
}

func cell(record []string, idx int) string {
	return strings.TrimSpace(strings.Trim(record[idx], "\""))
}

func columnIndices(header []string, opts *CSVOptions) (valueIdx, dateIdx, idIdx int) {
	valueIdx, dateIdx, idIdx = -1, -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.Trim(h, "\""))
		switch {
		case h == opts.ValueColumn || (opts.ValueColumn == "" && (h == "y" || h == "value" || h == "Value")):
			valueIdx = i
		case opts.DateColumn != "" && h == opts.DateColumn:
			dateIdx = i
		case h == "ds" || h == "ts" || h == "timestamp" || h == "date" || h == "Date":
			if dateIdx == -1 {
				dateIdx = i
			}
		case opts.IDColumn != "" && h == opts.IDColumn:
			idIdx = i
		}
	}
	if valueIdx == -1 {
		valueIdx = len(header) - 1
	}
	return valueIdx, dateIdx, idIdx
}

// SaveCSV writes a series as ds,y rows with RFC 3339 timestamps.
func SaveCSV(series *Series, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, series); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteCSV writes a series as ds,y rows with RFC 3339 timestamps.
func WriteCSV(w io.Writer, series *Series) error {
	writer := bufio.NewWriter(w)
	writer.WriteString("ds,y\n")
	for i, v := range series.Values {
		if i < len(series.Timestamps) {
			writer.WriteString(series.Timestamps[i].Format(time.RFC3339))
		} else {
			writer.WriteString(strconv.Itoa(i + 1))
		}
		writer.WriteString(",")
		writer.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		writer.WriteString("\n")
	}
	return writer.Flush()
}
