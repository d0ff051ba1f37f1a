// Package dialect holds the database specifics the migration engine needs:
// how to detect a table, how to read and upsert a metadata row, how to quote
// names for rendered SQL, and which database/sql driver to open.
//
// Three dialects are provided: PostgreSQL (pgx driver), MySQL/MariaDB and SQLite.
// Migration statements themselves are opaque to the engine and are never
// rewritten; only the engine's own metadata queries go through a Dialect.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// Querier is the read side of a database handle.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Execer is the write side of a database handle.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Dialect describes one database flavour.
type Dialect interface {
	// Name is the canonical dialect name (postgres, mysql, sqlite).
	Name() string

	// DriverName is the database/sql driver registered for this dialect.
	DriverName() string

	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string

	// QuoteLiteral quotes a string literal. Only used when rendering SQL for
	// display; executed queries always use placeholders.
	QuoteLiteral(value string) string

	// TableExists reports whether a table with the given name exists in the
	// current schema/database.
	TableExists(ctx context.Context, db Querier, table string) (bool, error)

	// SelectMetaSQL returns a query selecting meta_value from table for a
	// single meta_name placeholder.
	SelectMetaSQL(table string) string

	// UpsertMeta inserts or overwrites the meta_value stored under name.
	UpsertMeta(ctx context.Context, db Execer, table, name, value string) error

	// RenderUpsertMeta returns the upsert as literal SQL, for dry runs.
	RenderUpsertMeta(table, name, value string) string

	// IsUndefinedTable reports whether err is the driver's "table does not
	// exist" error.
	IsUndefinedTable(err error) bool
}

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// ValidateIdentifier ensures a configured table name contains only characters
// that are safe to splice into SQL.
func ValidateIdentifier(name, fieldName string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%s must start with a letter and contain only letters, numbers, and underscores (got: %s)", fieldName, name)
	}
	return nil
}

// ByName returns the dialect for a driver or dialect name.
// Accepted names: postgres, postgresql, pgx, mysql, mariadb, sqlite, sqlite3.
func ByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: postgres, mysql, sqlite)", name)
	}
}

// Open opens a connection pool for the dialect and verifies it with a ping.
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", d.Name(), err)
	}

	// An in-memory SQLite database lives and dies with its connection.
	if _, ok := d.(SQLite); ok {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", d.Name(), err)
	}
	return db, nil
}

// quoteWith wraps name in q, doubling any embedded q.
func quoteWith(name, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}
