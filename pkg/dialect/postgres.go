package dialect

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// pgUndefinedTable is the SQLSTATE for undefined_table.
const pgUndefinedTable = "42P01"

// Postgres is the PostgreSQL dialect, opened through the pgx stdlib driver.
type Postgres struct{}

var _ Dialect = Postgres{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) QuoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func (Postgres) QuoteLiteral(value string) string {
	return pq.QuoteLiteral(value)
}

// TableExists looks the table up in pg_class within current_schema().
func (Postgres) TableExists(ctx context.Context, db Querier, table string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = $1
			AND n.nspname = current_schema()
			AND c.relkind IN ('r', 'p')
		)
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return exists, nil
}

func (d Postgres) SelectMetaSQL(table string) string {
	return fmt.Sprintf("SELECT meta_value FROM %s WHERE meta_name = $1", d.QuoteIdent(table))
}

func (d Postgres) UpsertMeta(ctx context.Context, db Execer, table, name, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (meta_name, meta_value)
		VALUES ($1, $2)
		ON CONFLICT (meta_name) DO UPDATE SET meta_value = EXCLUDED.meta_value
	`, d.QuoteIdent(table))
	if _, err := db.ExecContext(ctx, query, name, value); err != nil {
		return fmt.Errorf("upserting %s.%s: %w", table, name, err)
	}
	return nil
}

func (d Postgres) RenderUpsertMeta(table, name, value string) string {
	return fmt.Sprintf("INSERT INTO %s (meta_name, meta_value) VALUES (%s, %s) ON CONFLICT (meta_name) DO UPDATE SET meta_value = EXCLUDED.meta_value;",
		d.QuoteIdent(table), d.QuoteLiteral(name), d.QuoteLiteral(value))
}

func (Postgres) IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable
	}
	return false
}
