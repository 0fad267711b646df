package sink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sartorproj/arimastream/database"
)

// SQLBackend stores every set in one table keyed by a set_name column.
// Timestamps are stored as unix milliseconds.
type SQLBackend struct {
	db     *sql.DB
	driver string
	table  string
}

// NewSQLBackend creates a backend writing to table through db opened with driver.
func NewSQLBackend(db *sql.DB, driver, table string) (*SQLBackend, error) {
	if err := database.CheckIdentifier(table); err != nil {
		return nil, err
	}
	if driver != database.DriverSQLite && driver != database.DriverClickHouse {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	return &SQLBackend{db: db, driver: driver, table: table}, nil
}

// EnsureSchema creates the predictions table if it does not exist.
func (b *SQLBackend) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	set_name TEXT NOT NULL,
	ts INTEGER NOT NULL,
	value REAL NOT NULL,
	low REAL NOT NULL,
	high REAL NOT NULL
)`, b.table)
	if b.driver == database.DriverClickHouse {
		stmt = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	set_name LowCardinality(String),
	ts Int64,
	value Float64,
	low Float64,
	high Float64
) ENGINE = MergeTree ORDER BY (set_name, ts)`, b.table)
	}
	if _, err := b.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Insert writes records in one transaction.
func (b *SQLBackend) Insert(ctx context.Context, set string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf("INSERT INTO %s (set_name, ts, value, low, high) VALUES (?, ?, ?, ?, ?)", b.table)
	if b.driver == database.DriverClickHouse {
		// clickhouse-go batches rows of a prepared INSERT until commit.
		query = fmt.Sprintf("INSERT INTO %s (set_name, ts, value, low, high)", b.table)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, set, r.Timestamp.UnixMilli(), r.Value, r.Low, r.High); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Clear deletes every record of set.
func (b *SQLBackend) Clear(ctx context.Context, set string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE set_name = ?", b.table)
	if b.driver == database.DriverClickHouse {
		query = fmt.Sprintf("ALTER TABLE %s DELETE WHERE set_name = ?", b.table)
	}
	_, err := b.db.ExecContext(ctx, query, set)
	return err
}

// Close is a no-op; the caller owns db.
func (b *SQLBackend) Close() error {
	return nil
}
