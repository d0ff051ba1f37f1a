package migrator

import (
	"context"

	"github.com/novabot/dbupdate/pkg/dialect"
)

// UpdateToCurrent probes db with the default layout (commands, bot_meta,
// db_version) and walks it up through reg. This is the call a host makes on
// startup:
//
//	reg, _ := migrations.Registry()
//	ok := migrator.UpdateToCurrent(ctx, db, dialect.MySQL{}, reg, migrator.Options{
//		OnSetupIncomplete: func(err error) { log.Fatal(err) },
//	})
//
// For a custom layout, build a Probe and Runner directly.
func UpdateToCurrent(ctx context.Context, db Execer, d dialect.Dialect, reg *Registry, opts Options) bool {
	res, err := Migrate(ctx, db, d, reg, opts)
	return err == nil && res != nil
}

// Migrate is UpdateToCurrent returning the detailed result and error.
func Migrate(ctx context.Context, db Execer, d dialect.Dialect, reg *Registry, opts Options) (*Result, error) {
	probe, err := NewProbe(db, d, ProbeConfig{Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return NewRunner(db, reg, probe, opts).Update(ctx)
}

// GetStatus reports where db stands relative to reg using the default layout.
func GetStatus(ctx context.Context, db Execer, d dialect.Dialect, reg *Registry) (*Status, error) {
	probe, err := NewProbe(db, d, ProbeConfig{})
	if err != nil {
		return nil, err
	}
	return NewRunner(db, reg, probe, Options{}).Status(ctx)
}
