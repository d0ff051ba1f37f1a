package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/novabot/dbupdate"
	"github.com/novabot/dbupdate/internal/cli"
	"github.com/novabot/dbupdate/migrations"
	"github.com/novabot/dbupdate/pkg/dialect"
	"github.com/novabot/dbupdate/pkg/migrator"
)

// useSQLite points the CLI globals at a fresh SQLite file.
func useSQLite(t *testing.T) dbFlags {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot.db")

	oldCfg, oldQuiet, oldLogger := cfg, quiet, logger
	t.Cleanup(func() { cfg, quiet, logger = oldCfg, oldQuiet, oldLogger })

	cfg = &cli.Config{
		Database: cli.DatabaseConfig{Driver: "sqlite", Path: path},
		Migrate: cli.MigrateConfig{
			BaseTable:     dbupdate.DefaultBaseTable,
			MetaTable:     dbupdate.DefaultMetaTable,
			VersionKey:    dbupdate.DefaultVersionKey,
			Transactional: true,
		},
	}
	quiet = true
	logger = zap.NewNop()
	return dbFlags{}
}

func storedVersion(t *testing.T) int {
	t.Helper()
	ctx := context.Background()
	db, err := dialect.Open(ctx, dialect.SQLite{}, cfg.Database.Path)
	require.NoError(t, err)
	defer db.Close()

	probe, err := migrator.NewProbe(db, dialect.SQLite{}, migrator.ProbeConfig{})
	require.NoError(t, err)
	v, err := probe.CurrentVersion(ctx)
	require.NoError(t, err)
	return v
}

func TestMigrate_UninitializedDatabaseExitsWithGeneralError(t *testing.T) {
	flags := useSQLite(t)

	err := runMigrate(context.Background(), flags, migrateOptions{})
	require.Error(t, err)
	assert.True(t, dbupdate.IsSetupIncompleteErr(err))
	assert.Equal(t, cli.ExitGeneral, cli.ExitCode(err))
}

func TestInitThenMigrate(t *testing.T) {
	flags := useSQLite(t)
	ctx := context.Background()

	require.NoError(t, runInit(ctx, flags))
	assert.Equal(t, 0, storedVersion(t))

	// Init is idempotent.
	require.NoError(t, runInit(ctx, flags))

	textfile := filepath.Join(t.TempDir(), "dbupdate.prom")
	require.NoError(t, runMigrate(ctx, flags, migrateOptions{textfile: textfile}))

	reg, err := migrations.Registry()
	require.NoError(t, err)
	assert.Equal(t, reg.Highest(), storedVersion(t))

	_, err = os.Stat(textfile)
	assert.NoError(t, err)

	// A second pass is a no-op.
	require.NoError(t, runMigrate(ctx, flags, migrateOptions{}))
	assert.Equal(t, reg.Highest(), storedVersion(t))

	require.NoError(t, runStatus(ctx, flags))
	require.NoError(t, runDoctor(ctx, flags, false))
}

func TestMigrate_DryRunLeavesVersion(t *testing.T) {
	flags := useSQLite(t)
	ctx := context.Background()

	require.NoError(t, runInit(ctx, flags))
	require.NoError(t, runMigrate(ctx, flags, migrateOptions{dryRun: true}))
	assert.Equal(t, 0, storedVersion(t))
}

func TestInit_RejectsCustomBaseTable(t *testing.T) {
	flags := useSQLite(t)
	cfg.Migrate.BaseTable = "guilds"

	err := runInit(context.Background(), flags)
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
	assert.Contains(t, err.Error(), "guilds")

	// Nothing was created.
	db, err := dialect.Open(context.Background(), dialect.SQLite{}, cfg.Database.Path)
	require.NoError(t, err)
	defer db.Close()
	exists, err := dialect.SQLite{}.TableExists(context.Background(), db, dbupdate.DefaultBaseTable)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDoctor_UninitializedFails(t *testing.T) {
	flags := useSQLite(t)

	err := runDoctor(context.Background(), flags, true)
	require.Error(t, err)
	assert.Equal(t, cli.ExitGeneral, cli.ExitCode(err))
}

func TestConnect_BadDriver(t *testing.T) {
	useSQLite(t)

	_, err := connect(context.Background(), dbFlags{driver: "oracle"})
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}

func TestResolveHelpers(t *testing.T) {
	assert.Equal(t, "flag", resolveString("", "flag", "config"))
	assert.Equal(t, "", resolveString("", ""))
	assert.True(t, resolveBool(false, true))
	assert.False(t, resolveBool(false, false))
}

// syncCounter is a log sink that counts flushes.
type syncCounter struct{ syncs int }

func (s *syncCounter) Write(p []byte) (int, error) { return len(p), nil }
func (s *syncCounter) Sync() error                 { s.syncs++; return nil }

func TestExecute_SyncsLoggerOnFailure(t *testing.T) {
	sink := &syncCounter{}
	oldNew, oldCfg, oldLogger := newLogger, cfg, logger
	t.Cleanup(func() {
		newLogger, cfg, logger = oldNew, oldCfg, oldLogger
		migrateDB = dbFlags{}
		rootCmd.SetArgs(nil)
	})
	newLogger = func(cli.LogConfig, int, bool) (*zap.Logger, error) {
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		return zap.New(zapcore.NewCore(enc, sink, zapcore.DebugLevel)), nil
	}

	rootCmd.SetArgs([]string{"migrate", "--driver", "oracle"})
	err := execute()
	require.Error(t, err)
	assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
	assert.Equal(t, 1, sink.syncs)
}
