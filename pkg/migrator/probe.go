package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/novabot/dbupdate"
	"github.com/novabot/dbupdate/pkg/dialect"
)

// ProbeConfig names the tables and key the probe reads. Zero values fall back
// to the package defaults in dbupdate.
type ProbeConfig struct {
	// BaseTable marks an initialized database. Defaults to "commands".
	BaseTable string

	// MetaTable holds the version marker. Defaults to "bot_meta".
	MetaTable string

	// VersionKey is the meta_name of the marker. Defaults to "db_version".
	VersionKey string

	// StrictProbe returns read failures as ErrVersionProbe instead of logging
	// them and assuming version 0.
	StrictProbe bool

	Logger *zap.Logger
}

func (c ProbeConfig) withDefaults() ProbeConfig {
	if c.BaseTable == "" {
		c.BaseTable = dbupdate.DefaultBaseTable
	}
	if c.MetaTable == "" {
		c.MetaTable = dbupdate.DefaultMetaTable
	}
	if c.VersionKey == "" {
		c.VersionKey = dbupdate.DefaultVersionKey
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Probe reads and writes the schema version marker.
type Probe struct {
	db      Execer
	dialect dialect.Dialect
	cfg     ProbeConfig
	logger  *zap.Logger
}

// NewProbe creates a probe for db. Table names are validated here since they
// are spliced into SQL.
func NewProbe(db Execer, d dialect.Dialect, cfg ProbeConfig) (*Probe, error) {
	cfg = cfg.withDefaults()
	if err := dialect.ValidateIdentifier(cfg.BaseTable, "base_table"); err != nil {
		return nil, err
	}
	if err := dialect.ValidateIdentifier(cfg.MetaTable, "meta_table"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.VersionKey) == "" {
		return nil, errors.New("version_key cannot be empty")
	}
	return &Probe{
		db:      db,
		dialect: d,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("component", "probe")),
	}, nil
}

// Dialect returns the dialect the probe was built with.
func (p *Probe) Dialect() dialect.Dialect { return p.dialect }

// Config returns the effective configuration, defaults applied.
func (p *Probe) Config() ProbeConfig { return p.cfg }

// CurrentVersion determines the schema version of the database:
//
//   - base table missing: ErrSetupIncomplete
//   - metadata table missing: 0 (database predates version tracking)
//   - marker row missing: 0
//   - marker present: its integer value
//
// A failure while reading or parsing the marker is logged and treated as 0,
// unless StrictProbe is set. Failures of the table checks are always returned.
func (p *Probe) CurrentVersion(ctx context.Context) (int, error) {
	ok, err := p.dialect.TableExists(ctx, p.db, p.cfg.BaseTable)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", dbupdate.ErrVersionProbe, err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: table %s does not exist", dbupdate.ErrSetupIncomplete, p.cfg.BaseTable)
	}

	ok, err = p.dialect.TableExists(ctx, p.db, p.cfg.MetaTable)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", dbupdate.ErrVersionProbe, err)
	}
	if !ok {
		p.logger.Debug("metadata table not found, assuming version 0",
			zap.String("table", p.cfg.MetaTable))
		return 0, nil
	}

	raw, found, err := p.readMarker(ctx)
	if err != nil {
		if p.dialect.IsUndefinedTable(err) {
			return 0, nil
		}
		return p.readFailed(err)
	}
	if !found {
		return 0, nil
	}

	v, err := parseVersion(raw)
	if err != nil {
		return p.readFailed(err)
	}
	return v, nil
}

func (p *Probe) readFailed(err error) (int, error) {
	if p.cfg.StrictProbe {
		return 0, fmt.Errorf("%w: %w", dbupdate.ErrVersionProbe, err)
	}
	p.logger.Warn("could not read schema version, assuming 0",
		zap.String("table", p.cfg.MetaTable),
		zap.String("key", p.cfg.VersionKey),
		zap.Error(err))
	return 0, nil
}

// readMarker returns the raw marker value and whether the row exists.
func (p *Probe) readMarker(ctx context.Context) (string, bool, error) {
	var raw string
	err := p.db.QueryRowContext(ctx, p.dialect.SelectMetaSQL(p.cfg.MetaTable), p.cfg.VersionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s.%s: %w", p.cfg.MetaTable, p.cfg.VersionKey, err)
	}
	return raw, true, nil
}

func parseVersion(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing schema version %q: %w", raw, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("parsing schema version %q: negative version", raw)
	}
	return v, nil
}

// PersistVersion records v as the current schema version, inserting the
// marker or overwriting it.
func (p *Probe) PersistVersion(ctx context.Context, v int) error {
	return p.persistVersion(ctx, p.db, v)
}

func (p *Probe) persistVersion(ctx context.Context, db dialect.Execer, v int) error {
	return p.dialect.UpsertMeta(ctx, db, p.cfg.MetaTable, p.cfg.VersionKey, strconv.Itoa(v))
}

// renderPersist returns the version upsert as literal SQL.
func (p *Probe) renderPersist(v int) string {
	return p.dialect.RenderUpsertMeta(p.cfg.MetaTable, p.cfg.VersionKey, strconv.Itoa(v))
}

// Inspection is a read-only snapshot of the version tracking layout.
type Inspection struct {
	BaseTableExists bool
	MetaTableExists bool
	MarkerPresent   bool

	// RawMarker is the stored value as read, before parsing.
	RawMarker string

	// Version is the parsed marker, valid when MarkerErr is nil.
	Version   int
	MarkerErr error
}

// Inspect reports the state of the base table, metadata table and marker
// without falling back to defaults. Only database errors are returned; a
// malformed marker is reported in MarkerErr.
func (p *Probe) Inspect(ctx context.Context) (*Inspection, error) {
	in := &Inspection{}

	var err error
	if in.BaseTableExists, err = p.dialect.TableExists(ctx, p.db, p.cfg.BaseTable); err != nil {
		return nil, err
	}
	if in.MetaTableExists, err = p.dialect.TableExists(ctx, p.db, p.cfg.MetaTable); err != nil {
		return nil, err
	}
	if !in.MetaTableExists {
		return in, nil
	}

	raw, found, err := p.readMarker(ctx)
	if err != nil {
		return nil, err
	}
	in.MarkerPresent = found
	in.RawMarker = raw
	if found {
		in.Version, in.MarkerErr = parseVersion(raw)
	}
	return in, nil
}
