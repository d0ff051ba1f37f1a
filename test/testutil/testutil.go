// Package testutil starts throwaway PostgreSQL and MySQL servers for the
// integration tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/novabot/dbupdate/pkg/dialect"
	dbsql "github.com/novabot/dbupdate/sql"
)

// Singleton container state. Containers are not stored; ryuk cleans them up.
var (
	postgresOnce sync.Once
	postgresDSN  string
	postgresErr  error

	mysqlOnce sync.Once
	mysqlDSN  string
	mysqlErr  error
)

func ensurePostgres() (string, error) {
	postgresOnce.Do(func() {
		if dsn := os.Getenv("DBUPDATE_TEST_POSTGRES_URL"); dsn != "" {
			postgresDSN = dsn
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("bot"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			postgresErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			postgresErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		postgresDSN = dsn
	})
	return postgresDSN, postgresErr
}

func ensureMySQL() (string, error) {
	mysqlOnce.Do(func() {
		if dsn := os.Getenv("DBUPDATE_TEST_MYSQL_DSN"); dsn != "" {
			mysqlDSN = dsn
			return
		}

		ctx := context.Background()
		container, err := tcmysql.Run(ctx,
			"mysql:8.4",
			tcmysql.WithDatabase("bot"),
			tcmysql.WithUsername("test"),
			tcmysql.WithPassword("test"),
		)
		if err != nil {
			mysqlErr = fmt.Errorf("failed to start MySQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "multiStatements=false")
		if err != nil {
			_ = container.Terminate(ctx)
			mysqlErr = fmt.Errorf("failed to get MySQL connection string: %w", err)
			return
		}
		mysqlDSN = dsn
	})
	return mysqlDSN, mysqlErr
}

// Database is a connection to a freshly reset test database.
type Database struct {
	DB      *sql.DB
	Dialect dialect.Dialect
}

// Postgres returns a connection to the shared PostgreSQL container with every
// bot table dropped.
func Postgres(t testing.TB) *Database {
	t.Helper()
	dsn, err := ensurePostgres()
	require.NoError(t, err, "starting postgres")
	return open(t, dialect.Postgres{}, dsn)
}

// MySQL returns a connection to the shared MySQL container with every bot
// table dropped.
func MySQL(t testing.TB) *Database {
	t.Helper()
	dsn, err := ensureMySQL()
	require.NoError(t, err, "starting mysql")
	return open(t, dialect.MySQL{}, dsn)
}

// Tables dropped between tests, dependents first.
var botTables = []string{
	"server_settings",
	"command_usage",
	"service_subscriptions",
	"services",
	"bot_meta",
	"commands",
	"users",
	"servers",
}

func open(t testing.TB, d dialect.Dialect, dsn string) *Database {
	t.Helper()
	ctx := context.Background()

	db, err := dialect.Open(ctx, d, dsn)
	require.NoError(t, err, "connecting to %s", d.Name())
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range botTables {
		_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+d.QuoteIdent(table))
		require.NoError(t, err, "dropping %s", table)
	}

	return &Database{DB: db, Dialect: d}
}

// Bootstrap applies the base schema, leaving the database at version 0.
func (d *Database) Bootstrap(t testing.TB) {
	t.Helper()
	for _, stmt := range dbsql.Statements(dbsql.CreateSQL) {
		_, err := d.DB.ExecContext(context.Background(), stmt)
		require.NoError(t, err, "applying base schema")
	}
}
