package dialect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// mysqlNoSuchTable is ER_NO_SUCH_TABLE.
const mysqlNoSuchTable = 1146

// MySQL is the MySQL/MariaDB dialect.
type MySQL struct{}

var _ Dialect = MySQL{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) QuoteIdent(name string) string {
	return quoteWith(name, "`")
}

func (MySQL) QuoteLiteral(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return quoteWith(value, "'")
}

// TableExists consults information_schema for the connection's default database.
func (MySQL) TableExists(ctx context.Context, db Querier, table string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = DATABASE()
		AND table_name = ?
	`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return count > 0, nil
}

func (d MySQL) SelectMetaSQL(table string) string {
	return fmt.Sprintf("SELECT meta_value FROM %s WHERE meta_name = ?", d.QuoteIdent(table))
}

func (d MySQL) UpsertMeta(ctx context.Context, db Execer, table, name, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (meta_name, meta_value)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE meta_value = ?
	`, d.QuoteIdent(table))
	if _, err := db.ExecContext(ctx, query, name, value, value); err != nil {
		return fmt.Errorf("upserting %s.%s: %w", table, name, err)
	}
	return nil
}

func (d MySQL) RenderUpsertMeta(table, name, value string) string {
	return fmt.Sprintf("INSERT INTO %s (meta_name, meta_value) VALUES (%s, %s) ON DUPLICATE KEY UPDATE meta_value = %s;",
		d.QuoteIdent(table), d.QuoteLiteral(name), d.QuoteLiteral(value), d.QuoteLiteral(value))
}

func (MySQL) IsUndefinedTable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlNoSuchTable
	}
	return false
}
