package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/novabot/dbupdate"
	"github.com/novabot/dbupdate/internal/cli"
	dbsql "github.com/novabot/dbupdate/sql"
)

var (
	initDB      dbFlags
	initMigrate bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Apply the base schema to an empty database",
	Long: `Apply the embedded base schema (` + dbupdate.CreateScript + `) to a database that
does not have it yet. A database that already has the base table is left
untouched. Only the default base table (commands) can be created this way.`,
	Example: `  # Initialize a new database
  dbupdate init --driver sqlite --db ./bot.db

  # Initialize and upgrade to the latest version in one go
  dbupdate init --migrate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runInit(cmd.Context(), initDB); err != nil {
			return err
		}
		if !initMigrate {
			return nil
		}
		return runMigrate(cmd.Context(), initDB, migrateOptions{
			strictChain: cfg.Migrate.StrictChain,
			noTx:        !cfg.Migrate.Transactional,
			textfile:    cfg.Metrics.Textfile,
		})
	},
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initDB.dsn, "db", "", "database URL or DSN")
	f.StringVar(&initDB.driver, "driver", "", "database driver: postgres, mysql or sqlite")
	f.BoolVar(&initMigrate, "migrate", false, "run migrate after initializing")
}

func runInit(ctx context.Context, flags dbFlags) error {
	conn, err := connect(ctx, flags)
	if err != nil {
		return err
	}
	defer conn.Close()

	base := conn.probe.Config().BaseTable
	if base != dbupdate.DefaultBaseTable {
		return cli.ConfigError(fmt.Sprintf(
			"%s creates the %s table but migrate.base_table is %q; create %s yourself",
			dbupdate.CreateScript, dbupdate.DefaultBaseTable, base, base), nil)
	}
	exists, err := conn.dialect.TableExists(ctx, conn.db, base)
	if err != nil {
		return cli.GeneralError("checking base schema", err)
	}
	if exists {
		if !quiet {
			fmt.Printf("Database already initialized (%s table exists).\n", base)
		}
		return nil
	}

	stmts := dbsql.Statements(dbsql.CreateSQL)
	for i, stmt := range stmts {
		logger.Debug("applying base schema statement", zap.Int("index", i))
		if _, err := conn.db.ExecContext(ctx, stmt); err != nil {
			return cli.GeneralError(fmt.Sprintf("applying %s statement %d", dbupdate.CreateScript, i), err)
		}
	}

	if !quiet {
		fmt.Printf("Base schema applied (%d statements).\n", len(stmts))
	}
	return nil
}
