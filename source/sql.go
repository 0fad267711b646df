package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sartorproj/arimastream/database"
	"github.com/sartorproj/arimastream/timeseries"
)

// SQLConfig names the table and columns observations are read from. The time
// column holds unix milliseconds.
type SQLConfig struct {
	Table       string `yaml:"table"`
	TimeColumn  string `yaml:"time_column" default:"ts"`
	ValueColumn string `yaml:"value_column" default:"value"`
}

// SQLReader pages through a table ordered by its time column. It works with
// any driver accepting ? placeholders, which covers SQLite and ClickHouse.
type SQLReader struct {
	db       *sql.DB
	all      string
	fromGT   string
	fromGTE  string
	pos      Position
	seriesID string
}

// NewSQLReader prepares the paging queries for cfg.
func NewSQLReader(db *sql.DB, cfg SQLConfig) (*SQLReader, error) {
	for _, ident := range []string{cfg.Table, cfg.TimeColumn, cfg.ValueColumn} {
		if err := database.CheckIdentifier(ident); err != nil {
			return nil, err
		}
	}

	base := fmt.Sprintf("SELECT %s, %s FROM %s", cfg.TimeColumn, cfg.ValueColumn, cfg.Table)
	order := fmt.Sprintf(" ORDER BY %s LIMIT ?", cfg.TimeColumn)
	return &SQLReader{
		db:       db,
		all:      base + order,
		fromGT:   base + fmt.Sprintf(" WHERE %s > ?", cfg.TimeColumn) + order,
		fromGTE:  base + fmt.Sprintf(" WHERE %s >= ?", cfg.TimeColumn) + order,
		seriesID: cfg.Table,
	}, nil
}

func (r *SQLReader) Read(ctx context.Context, batch int) (*timeseries.Series, error) {
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case r.pos.Start.IsZero():
		rows, err = r.db.QueryContext(ctx, r.all, batch)
	case r.pos.Inclusive:
		rows, err = r.db.QueryContext(ctx, r.fromGTE, r.pos.Start.UnixMilli(), batch)
	default:
		rows, err = r.db.QueryContext(ctx, r.fromGT, r.pos.Start.UnixMilli(), batch)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.seriesID, err)
	}
	defer rows.Close()

	out := &timeseries.Series{Name: r.seriesID}
	var last time.Time
	for rows.Next() {
		var (
			ms    int64
			value sql.NullFloat64
		)
		if err := rows.Scan(&ms, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.seriesID, err)
		}
		last = time.UnixMilli(ms).UTC()
		if value.Valid {
			out.Append(last, value.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", r.seriesID, err)
	}

	// Rows with NULL values still advance the position.
	if !last.IsZero() {
		r.pos = Position{Start: last}
	}
	if out.Len() == 0 && !last.IsZero() {
		return r.Read(ctx, batch)
	}
	return out, nil
}

func (r *SQLReader) Position() Position { return r.pos }
func (r *SQLReader) Seek(p Position)    { r.pos = p }
