package migrator

import (
	"context"
	"database/sql"
)

// Execer is the minimal interface needed to probe and upgrade a schema.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
//
// When the value also implements BeginTx (as *sql.DB does), each unit is applied
// inside its own transaction together with its version update.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txBeginner is satisfied by *sql.DB.
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
