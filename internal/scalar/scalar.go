// Package scalar executes externally defined scalar queries used by
// "sql"-typed default values. Supported engines: PostgreSQL, SQL Server and
// SQLite.
package scalar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// Querier executes an expression and returns at most one scalar value.
// ok is false when the query returned no rows; that is not an error.
type Querier interface {
	QueryScalar(ctx context.Context, expr string) (value string, ok bool, err error)
}

// DB is a Querier backed by database/sql.
type DB struct {
	db      *sql.DB
	timeout time.Duration
}

// Open opens a connection pool for scalar queries. driverName is one of
// "pgx", "sqlserver" or "sqlite".
func Open(driverName, dsn string, timeout time.Duration) (*DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening scalar query connection: %w", err)
	}

	// Defaults are resolved one at a time; a couple of connections suffice.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DB{db: db, timeout: timeout}, nil
}

// Close closes the underlying pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// QueryScalar runs expr with a bounded timeout and returns the first column
// of the first row, rendered as a string.
func (d *DB) QueryScalar(ctx context.Context, expr string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var raw any
	err := d.db.QueryRowContext(ctx, expr).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("executing scalar query: %w", err)
	}
	return formatValue(raw), true, nil
}

// formatValue renders a scanned database value as the string written into
// the output column.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
