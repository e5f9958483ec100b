// Package store is the append-only persistence layer for harvested
// jurisdictions and search results.
//
// Local databases use the pure Go modernc SQLite driver; libsql/http URLs
// open a remote libsql database. Every write is its own statement and is
// committed immediately.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Remote libsql driver
	_ "modernc.org/sqlite"                               // Pure Go SQLite driver
)

var (
	// ErrUnknownTable is returned for a table name outside the schema.
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnknownColumn is returned when a row names a column the table does not have.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrColumnMismatch is returned when a row's column and value counts differ.
	ErrColumnMismatch = errors.New("column/value count mismatch")
)

// Row is one insert: column names and their values, position by position.
type Row struct {
	Columns []string
	Values  []any
}

// Store wraps the shared database handle.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	driver string
	remote bool
}

// IsRemote reports whether dsn addresses a libsql server rather than a local file.
func IsRemote(dsn string) bool {
	for _, prefix := range []string{"libsql://", "http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

// Open connects to dsn and creates any missing tables. dsn is a file path,
// ":memory:", or a libsql/http URL (authToken is sent for remote URLs).
func Open(ctx context.Context, dsn, authToken string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver, connStr, err := connString(dsn, authToken)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite is single-writer
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, logger: logger, driver: driver, remote: driver == "libsql"}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("datastore initialized", "driver", driver, "remote", s.remote, "path", redact(dsn))
	return s, nil
}

func connString(dsn, authToken string) (driver, connStr string, err error) {
	switch {
	case dsn == "":
		return "", "", errors.New("database url is empty")
	case IsRemote(dsn):
		if authToken == "" {
			return "libsql", dsn, nil
		}
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("invalid database url: %w", err)
		}
		q := u.Query()
		q.Set("authToken", authToken)
		u.RawQuery = q.Encode()
		return "libsql", u.String(), nil
	case dsn == ":memory:":
		return "sqlite", ":memory:", nil
	default:
		path := strings.TrimPrefix(dsn, "file:")
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", "", fmt.Errorf("failed to create directory: %w", err)
			}
		}
		return "sqlite", path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	}
}

func redact(dsn string) string {
	if !IsRemote(dsn) {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "remote"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, name := range Tables() {
		if err := s.CreateTable(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// CreateTable creates a known table and its indexes if missing.
func (s *Store) CreateTable(ctx context.Context, name string) error {
	t, ok := schemas[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	if _, err := s.db.ExecContext(ctx, t.ddl); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	for _, idx := range t.indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index on %s: %w", name, err)
		}
	}
	return nil
}

// DropTable drops a known table.
func (s *Store) DropTable(ctx context.Context, name string) error {
	if _, ok := schemas[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	s.logger.Info("table dropped", "table", name)
	return nil
}

// Reset drops and recreates the named tables, or every table when none are named.
func (s *Store) Reset(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = Tables()
	}
	for _, name := range names {
		if err := s.DropTable(ctx, name); err != nil {
			return err
		}
		if err := s.CreateTable(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Insert appends one row and returns its rowid.
func (s *Store) Insert(ctx context.Context, name string, row Row) (int64, error) {
	if err := validate(name, row.Columns, len(row.Values)); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name,
		strings.Join(row.Columns, ", "),
		placeholders(len(row.Columns)),
	)
	res, err := s.db.ExecContext(ctx, query, row.Values...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", name, err)
	}
	return res.LastInsertId()
}

// InsertMany appends rows sharing one column list in a single statement.
// Every row must have exactly one value per column.
func (s *Store) InsertMany(ctx context.Context, name string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*len(columns))
	groups := make([]string, 0, len(rows))
	for i, values := range rows {
		if err := validate(name, columns, len(values)); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		args = append(args, values...)
		groups = append(groups, "("+placeholders(len(columns))+")")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		name,
		strings.Join(columns, ", "),
		strings.Join(groups, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	return nil
}

// Query runs a read query and returns each row as a column->value map.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = values[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of rows in a known table.
func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	if _, ok := schemas[name]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

// Stats returns the row count of every table.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, len(schemas))
	for _, name := range Tables() {
		n, err := s.Count(ctx, name)
		if err != nil {
			return nil, err
		}
		stats[name] = n
	}
	return stats, nil
}

func validate(name string, columns []string, values int) error {
	t, ok := schemas[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	if len(columns) == 0 || len(columns) != values {
		return fmt.Errorf("%w: %d columns, %d values", ErrColumnMismatch, len(columns), values)
	}
	for _, c := range columns {
		if !slices.Contains(t.columns, c) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, name, c)
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
