package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/novabot/dbupdate/internal/cli"
	"github.com/novabot/dbupdate/internal/doctor"
)

var (
	doctorDB      dbFlags
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on schema versioning",
	Long: `Run health checks on the migration registry, the base schema and the
stored version marker.`,
	Example: `  # Run health checks
  dbupdate doctor

  # Show details for every check
  dbupdate doctor --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.Context(), doctorDB, doctorVerbose || verbose > 0)
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB.dsn, "db", "", "database URL or DSN")
	f.StringVar(&doctorDB.driver, "driver", "", "database driver: postgres, mysql or sqlite")
	f.BoolVar(&doctorVerbose, "details", false, "show details for each check")
}

func runDoctor(ctx context.Context, flags dbFlags, showDetails bool) error {
	conn, err := connect(ctx, flags)
	if err != nil {
		return err
	}
	defer conn.Close()

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	fmt.Println("dbupdate doctor - Health Check")

	d := doctor.New(conn.probe, reg, doctor.Options{StrictChain: cfg.Migrate.StrictChain})
	report, err := d.Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, showDetails)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}
	return nil
}
