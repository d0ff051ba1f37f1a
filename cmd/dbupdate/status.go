package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/novabot/dbupdate/internal/cli"
	"github.com/novabot/dbupdate/pkg/migrator"
)

var statusDB dbFlags

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current schema status",
	Long:  `Show the stored schema version and the migration units still to apply.`,
	Example: `  # Check status
  dbupdate status --driver mysql --db 'bot:secret@tcp(localhost:3306)/botdb'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.Context(), statusDB)
	},
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusDB.dsn, "db", "", "database URL or DSN")
	f.StringVar(&statusDB.driver, "driver", "", "database driver: postgres, mysql or sqlite")
}

func runStatus(ctx context.Context, flags dbFlags) error {
	conn, err := connect(ctx, flags)
	if err != nil {
		return err
	}
	defer conn.Close()

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	s, err := migrator.NewRunner(conn.db, reg, conn.probe, migrator.Options{Logger: logger}).Status(ctx)
	if err != nil {
		return cli.GeneralError("getting status", err)
	}

	if s.State == migrator.StateUninitialized {
		fmt.Println("Base schema:     missing")
		fmt.Println("\nDatabase is not initialized. Run 'dbupdate init'.")
		return nil
	}

	fmt.Println("Base schema:     present")
	fmt.Printf("Schema version:  %d\n", s.Current)
	fmt.Printf("Latest version:  %d\n", s.Highest)

	switch {
	case s.Ahead:
		fmt.Println("\nDatabase is newer than this build.")
	case len(s.Pending) == 0 && !s.Gap:
		fmt.Println("\nSchema is up to date.")
	default:
		fmt.Printf("\nPending units (%d):\n", len(s.Pending))
		for _, u := range s.Pending {
			fmt.Printf("  %s  (%d statements)\n", u, len(u.Statements))
		}
		if s.Gap {
			fmt.Printf("\nNo unit continues from version %d.\n", s.Target)
		}
	}

	return nil
}
