//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novabot/dbupdate"
	"github.com/novabot/dbupdate/migrations"
	"github.com/novabot/dbupdate/pkg/migrator"
	"github.com/novabot/dbupdate/test/testutil"
)

type backend struct {
	name string
	open func(testing.TB) *testutil.Database
}

var backends = []backend{
	{name: "postgres", open: testutil.Postgres},
	{name: "mysql", open: testutil.MySQL},
}

func registry(t *testing.T) *migrator.Registry {
	t.Helper()
	reg, err := migrations.Registry()
	require.NoError(t, err)
	return reg
}

func TestMigrate_FullChain(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			db := b.open(t)
			db.Bootstrap(t)
			reg := registry(t)

			result, err := migrator.Migrate(ctx, db.DB, db.Dialect, reg, migrator.Options{})
			require.NoError(t, err)
			assert.Equal(t, migrator.StateUpToDate, result.State)
			assert.Equal(t, 0, result.From)
			assert.Equal(t, reg.Highest(), result.To)
			assert.Len(t, result.Applied, reg.Len())

			// The schema the units built is usable.
			_, err = db.DB.ExecContext(ctx,
				"INSERT INTO services (id, name, display_name, description) VALUES (1, 'news', 'News', 'Daily news')")
			require.NoError(t, err)

			status, err := migrator.GetStatus(ctx, db.DB, db.Dialect, reg)
			require.NoError(t, err)
			assert.Equal(t, migrator.StateUpToDate, status.State)
			assert.Equal(t, reg.Highest(), status.Current)
			assert.Empty(t, status.Pending)
		})
	}
}

func TestMigrate_SecondPassIsNoop(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			db := b.open(t)
			db.Bootstrap(t)
			reg := registry(t)

			require.True(t, migrator.UpdateToCurrent(ctx, db.DB, db.Dialect, reg, migrator.Options{}))

			result, err := migrator.Migrate(ctx, db.DB, db.Dialect, reg, migrator.Options{})
			require.NoError(t, err)
			assert.Empty(t, result.Applied)
			assert.Equal(t, reg.Highest(), result.From)
		})
	}
}

func TestMigrate_ResumesAfterFailure(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			db := b.open(t)
			db.Bootstrap(t)

			units := migrations.All()
			broken := append([]migrator.Unit{}, units[:2]...)
			broken = append(broken, migrator.Unit{
				From:       2,
				To:         3,
				Statements: []string{"ALTER TABLE no_such_table ADD COLUMN uses INTEGER"},
			})
			reg, err := migrator.NewRegistry(broken...)
			require.NoError(t, err)

			result, err := migrator.Migrate(ctx, db.DB, db.Dialect, reg, migrator.Options{})
			require.Error(t, err)
			assert.Equal(t, migrator.StateFailed, result.State)
			assert.Equal(t, 2, result.To)

			status, err := migrator.GetStatus(ctx, db.DB, db.Dialect, registry(t))
			require.NoError(t, err)
			assert.Equal(t, 2, status.Current)

			// The fixed chain picks up where the broken one stopped.
			result, err = migrator.Migrate(ctx, db.DB, db.Dialect, registry(t), migrator.Options{})
			require.NoError(t, err)
			assert.Equal(t, 2, result.From)
			assert.Len(t, result.Applied, 2)
		})
	}
}

func TestMigrate_UninitializedDatabase(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			db := b.open(t)

			calls := 0
			ok := migrator.UpdateToCurrent(context.Background(), db.DB, db.Dialect, registry(t), migrator.Options{
				OnSetupIncomplete: func(err error) {
					calls++
					assert.True(t, dbupdate.IsSetupIncompleteErr(err))
				},
			})
			assert.False(t, ok)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestMigrate_ReplayAfterUnreadableMarker(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			db := b.open(t)
			db.Bootstrap(t)
			reg := registry(t)

			require.True(t, migrator.UpdateToCurrent(ctx, db.DB, db.Dialect, reg, migrator.Options{}))

			require.NoError(t, db.Dialect.UpsertMeta(ctx, db.DB,
				dbupdate.DefaultMetaTable, dbupdate.DefaultVersionKey, "x"))

			result, err := migrator.Migrate(ctx, db.DB, db.Dialect, reg, migrator.Options{})
			require.NoError(t, err)
			assert.Equal(t, 0, result.From)
			assert.Equal(t, reg.Highest(), result.To)

			status, err := migrator.GetStatus(ctx, db.DB, db.Dialect, reg)
			require.NoError(t, err)
			assert.Equal(t, reg.Highest(), status.Current)
		})
	}
}
