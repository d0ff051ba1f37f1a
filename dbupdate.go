// Package dbupdate keeps the bot's database schema at the latest known version.
//
// # Versioned Schema
//
// The schema version is a single integer stored in the bot_meta table under the
// db_version key. Each schema change is a migration unit that moves the schema
// from one version to the next by running an ordered list of statements.
// Units are registered explicitly in the migrations package, so the whole chain
// can be inspected at compile time:
//
//	reg, err := migrations.Registry()
//
// # Startup Pass
//
// The host runs one upgrade pass at startup, before anything touches the schema:
//
//	d := dialect.MySQL{}
//	probe, err := migrator.NewProbe(db, d, migrator.ProbeConfig{})
//	if err != nil {
//		return err
//	}
//	runner := migrator.NewRunner(db, reg, probe, migrator.Options{
//		OnSetupIncomplete: func(err error) {
//			fmt.Println("Run the sql/create.sql file on the database")
//			os.Exit(1)
//		},
//	})
//	if !runner.UpdateToCurrent(ctx) {
//		// keep running at the last good version; retried on next start
//	}
//
// A database without the base tables is an operator error: the pass stops and
// the host's abort hook is invoked. A database with the base tables but no
// version marker predates version tracking and starts at version 0.
//
// # Failure Model
//
// Every unit and its version update are applied together. When a statement
// fails the pass stops and the stored version stays at the last unit that
// completed, so the next start resumes from there. Statements should be written
// to tolerate re-execution (CREATE ... IF NOT EXISTS, upserts) because a failed
// version read may fall back to version 0.
package dbupdate

// Defaults for the persisted layout.
const (
	// DefaultBaseTable is the foundational table whose presence marks an
	// initialized database.
	DefaultBaseTable = "commands"

	// DefaultMetaTable stores key/value metadata, including the schema version.
	DefaultMetaTable = "bot_meta"

	// DefaultVersionKey is the meta_name under which the schema version is kept.
	DefaultVersionKey = "db_version"

	// CreateScript is the operator-facing name of the bootstrap schema file.
	CreateScript = "sql/create.sql"
)
