package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/novabot/dbupdate"
	"github.com/novabot/dbupdate/internal/cli"
	"github.com/novabot/dbupdate/pkg/metrics"
	"github.com/novabot/dbupdate/pkg/migrator"
)

var (
	migrateDB          dbFlags
	migrateDryRun      bool
	migrateStrictChain bool
	migrateNoTx        bool
	migrateTextfile    string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Upgrade the schema to the latest version",
	Long: `Upgrade the database schema to the latest version known to this build.

Reads the stored version, then applies each registered migration unit in turn,
recording the new version after every unit. A failing statement stops the pass
and leaves the stored version at the last unit that completed.`,
	Example: `  # Upgrade using dbupdate.yaml
  dbupdate migrate

  # Upgrade a specific database
  dbupdate migrate --driver postgres --db postgres://localhost/botdb

  # Preview the SQL without applying it
  dbupdate migrate --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := migrateOptions{
			dryRun:      resolveBool(migrateDryRun, cfg.Migrate.DryRun),
			strictChain: resolveBool(migrateStrictChain, cfg.Migrate.StrictChain),
			noTx:        resolveBool(migrateNoTx, !cfg.Migrate.Transactional),
			textfile:    resolveString(migrateTextfile, cfg.Metrics.Textfile),
		}
		return runMigrate(cmd.Context(), migrateDB, opts)
	},
}

func init() {
	f := migrateCmd.Flags()
	f.StringVar(&migrateDB.dsn, "db", "", "database URL or DSN")
	f.StringVar(&migrateDB.driver, "driver", "", "database driver: postgres, mysql or sqlite")
	f.BoolVar(&migrateDryRun, "dry-run", false, "output migration SQL without applying")
	f.BoolVar(&migrateStrictChain, "strict-chain", false, "fail when no unit continues from the current version")
	f.BoolVar(&migrateNoTx, "no-tx", false, "apply units without wrapping them in transactions")
	f.StringVar(&migrateTextfile, "metrics-textfile", "", "write Prometheus metrics to this file when done")
}

type migrateOptions struct {
	dryRun      bool
	strictChain bool
	noTx        bool
	textfile    string
}

func runMigrate(ctx context.Context, flags dbFlags, opts migrateOptions) error {
	conn, err := connect(ctx, flags)
	if err != nil {
		return err
	}
	defer conn.Close()

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	runnerOpts := migrator.Options{
		Logger:              logger,
		Recorder:            metrics.NewCollector(metricsLabel(conn.dialect)),
		StrictChain:         opts.strictChain,
		DisableTransactions: opts.noTx,
		OnSetupIncomplete:   printSetupGuidance,
	}

	if opts.dryRun {
		runnerOpts.DryRun = os.Stdout
		if !quiet {
			fmt.Fprintln(os.Stderr, "-- Dry-run mode: SQL will be output but not applied")
			fmt.Fprintln(os.Stderr, "")
		}
	}

	res, err := migrator.NewRunner(conn.db, reg, conn.probe, runnerOpts).Update(ctx)

	if opts.textfile != "" {
		if werr := metrics.WriteTextfile(opts.textfile); werr != nil {
			logger.Warn("could not write metrics", zap.String("path", opts.textfile), zap.Error(werr))
		}
	}

	if err != nil {
		if dbupdate.IsSetupIncompleteErr(err) {
			return cli.GeneralError("database is not initialized", err)
		}
		return cli.MigrationError("migration failed", err)
	}

	if opts.dryRun || quiet {
		return nil
	}

	switch {
	case res.Ahead:
		fmt.Printf("Schema version %d is newer than this build knows (%d).\n", res.From, res.Highest)
	case len(res.Applied) == 0 && !res.Gap:
		fmt.Printf("Schema is up to date (version %d).\n", res.To)
	default:
		fmt.Printf("Schema upgraded from version %d to %d (%d units).\n", res.From, res.To, len(res.Applied))
	}
	if res.Gap {
		fmt.Printf("WARNING: no migration unit starts at version %d; highest known version is %d.\n", res.To, res.Highest)
	}
	return nil
}

// printSetupGuidance tells the operator how to bootstrap the database.
func printSetupGuidance(error) {
	fmt.Println()
	fmt.Println("DATABASE SETUP")
	fmt.Printf("Run the %s file on the database\n", dbupdate.CreateScript)
	fmt.Println("or run 'dbupdate init' to apply it.")
	fmt.Println()
}
