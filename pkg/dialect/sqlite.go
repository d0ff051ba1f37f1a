package dialect

import (
	"context"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite is the SQLite dialect, backed by the pure-Go modernc driver.
type SQLite struct{}

var _ Dialect = SQLite{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) QuoteIdent(name string) string {
	return quoteWith(name, `"`)
}

func (SQLite) QuoteLiteral(value string) string {
	return quoteWith(value, "'")
}

func (SQLite) TableExists(ctx context.Context, db Querier, table string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return count > 0, nil
}

func (d SQLite) SelectMetaSQL(table string) string {
	return fmt.Sprintf("SELECT meta_value FROM %s WHERE meta_name = ?", d.QuoteIdent(table))
}

func (d SQLite) UpsertMeta(ctx context.Context, db Execer, table, name, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (meta_name, meta_value)
		VALUES (?, ?)
		ON CONFLICT (meta_name) DO UPDATE SET meta_value = excluded.meta_value
	`, d.QuoteIdent(table))
	if _, err := db.ExecContext(ctx, query, name, value); err != nil {
		return fmt.Errorf("upserting %s.%s: %w", table, name, err)
	}
	return nil
}

func (d SQLite) RenderUpsertMeta(table, name, value string) string {
	return fmt.Sprintf("INSERT INTO %s (meta_name, meta_value) VALUES (%s, %s) ON CONFLICT (meta_name) DO UPDATE SET meta_value = excluded.meta_value;",
		d.QuoteIdent(table), d.QuoteLiteral(name), d.QuoteLiteral(value))
}

// IsUndefinedTable matches on the message; SQLite reports a missing table as a
// generic SQLITE_ERROR.
func (SQLite) IsUndefinedTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
