package migrator

import (
	"context"
	"database/sql"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/novabot/dbupdate/pkg/dialect"
)

// The mock-backed tests use the SQLite dialect; sqlmock ignores placeholder
// syntax so only the statement text matters.

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func expectTable(mock sqlmock.Sqlmock, table string, exists bool) {
	count := 0
	if exists {
		count = 1
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM sqlite_master")).
		WithArgs(table).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func expectMarker(mock sqlmock.Sqlmock, value string) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT meta_value FROM "bot_meta"`)).
		WithArgs("db_version").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow(value))
}

// expectProbeAt sets up a probe that finds both tables and the given marker.
func expectProbeAt(mock sqlmock.Sqlmock, version string) {
	expectTable(mock, "commands", true)
	expectTable(mock, "bot_meta", true)
	expectMarker(mock, version)
}

func expectPersist(mock sqlmock.Sqlmock, version string) {
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "bot_meta"`)).
		WithArgs("db_version", version).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func expectStatement(mock sqlmock.Sqlmock, stmt string) {
	mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
}

func newTestProbe(t *testing.T, db Execer, cfg ProbeConfig) *Probe {
	t.Helper()
	p, err := NewProbe(db, dialect.SQLite{}, cfg)
	require.NoError(t, err)
	return p
}

func newTestRegistry(t *testing.T, units ...Unit) *Registry {
	t.Helper()
	reg, err := NewRegistry(units...)
	require.NoError(t, err)
	return reg
}

// openSQLite returns an in-memory database that already has the base table.
func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := dialect.Open(ctx, dialect.SQLite{}, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TABLE commands (name VARCHAR(64) PRIMARY KEY)`)
	require.NoError(t, err)
	return db
}

// fakeRecorder captures Recorder calls.
type fakeRecorder struct {
	mu       sync.Mutex
	versions [][2]int
	applied  []string
	failed   []string
	gaps     []int
	finished []State
}

func (f *fakeRecorder) ObserveVersion(current, highest int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, [2]int{current, highest})
}

func (f *fakeRecorder) UnitApplied(u Unit, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, u.String())
}

func (f *fakeRecorder) UnitFailed(u Unit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, u.String())
}

func (f *fakeRecorder) ChainGap(stuckAt int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gaps = append(f.gaps, stuckAt)
}

func (f *fakeRecorder) PassFinished(state State, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, state)
}
