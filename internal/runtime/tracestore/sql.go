package tracestore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	jsoncodec "github.com/drblury/hermes/internal/runtime/jsoncodec"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLStore writes trace records with database/sql. Map and slice values are
// stored as JSON text.
type SQLStore struct {
	db          *sql.DB
	driver      string
	maxIdle     int
	disconnects *regexp.Regexp
}

// OpenSQLStore opens a connection pool for driver and dsn.
func OpenSQLStore(driverName, dsn string) (*SQLStore, error) {
	if driverName != DriverPostgres && driverName != DriverSQLite {
		return nil, fmt.Errorf("tracestore: unsupported driver %q", driverName)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("tracestore: open %s: %w", driverName, err)
	}
	return NewSQLStore(db, driverName), nil
}

// NewSQLStore wraps an existing pool.
func NewSQLStore(db *sql.DB, driverName string) *SQLStore {
	return &SQLStore{db: db, driver: driverName, maxIdle: 2}
}

// DB exposes the underlying pool.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the pool.
func (s *SQLStore) Close() error { return s.db.Close() }

// Insert writes attrs as one row of table.
func (s *SQLStore) Insert(ctx context.Context, table string, attrs map[string]any) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("tracestore: invalid table name %q", table)
	}
	if len(attrs) == 0 {
		return errors.New("tracestore: no attributes to insert")
	}

	columns := make([]string, 0, len(attrs))
	for column := range attrs {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, column := range columns {
		if !tableName.MatchString(column) {
			return fmt.Errorf("tracestore: invalid column name %q", column)
		}
		placeholders[i] = s.placeholder(i + 1)
		value, err := columnValue(attrs[column])
		if err != nil {
			return fmt.Errorf("tracestore: encode %s: %w", column, err)
		}
		args[i] = value
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLStore) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func columnValue(value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, int, int64, float64, []byte, time.Time:
		return v, nil
	case map[string]any, []any:
		data, err := jsoncodec.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		if valuer, ok := v.(driver.Valuer); ok {
			return valuer, nil
		}
		data, err := jsoncodec.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
}
