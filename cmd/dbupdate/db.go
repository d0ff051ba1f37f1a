package main

import (
	"context"
	"database/sql"

	"github.com/novabot/dbupdate/internal/cli"
	"github.com/novabot/dbupdate/migrations"
	"github.com/novabot/dbupdate/pkg/dialect"
	"github.com/novabot/dbupdate/pkg/migrator"
)

// dbFlags are shared by every command that talks to the database.
type dbFlags struct {
	dsn    string
	driver string
}

// connection is an open database with everything needed to probe it.
type connection struct {
	db      *sql.DB
	dialect dialect.Dialect
	probe   *migrator.Probe
}

func (c *connection) Close() {
	_ = c.db.Close()
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}

// connect resolves the dialect and DSN, opens the database and builds a probe
// from the migrate section of the config.
func connect(ctx context.Context, flags dbFlags) (*connection, error) {
	d, err := dialect.ByName(resolveString(flags.driver, cfg.Database.Driver))
	if err != nil {
		return nil, cli.ConfigError("database driver", err)
	}

	dsn, err := resolveDSN(flags.dsn)
	if err != nil {
		return nil, err
	}

	db, err := dialect.Open(ctx, d, dsn)
	if err != nil {
		return nil, cli.DBConnectError("connecting to database", err)
	}

	pc := cfg.ProbeConfig()
	pc.Logger = logger
	probe, err := migrator.NewProbe(db, d, pc)
	if err != nil {
		_ = db.Close()
		return nil, cli.ConfigError("migrate configuration", err)
	}

	return &connection{db: db, dialect: d, probe: probe}, nil
}

func loadRegistry() (*migrator.Registry, error) {
	reg, err := migrations.Registry()
	if err != nil {
		return nil, cli.GeneralError("loading migration registry", err)
	}
	return reg, nil
}

// metricsLabel names the database in metrics.
func metricsLabel(d dialect.Dialect) string {
	return resolveString(cfg.Database.Name, d.Name())
}
