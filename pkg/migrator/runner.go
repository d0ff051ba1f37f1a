package migrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novabot/dbupdate"
)

// State is the position of a runner in its single upgrade pass.
type State int

const (
	StateNotProbed State = iota
	StateProbing
	StateUninitialized
	StateUpToDate
	StateUpgrading
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotProbed:
		return "not_probed"
	case StateProbing:
		return "probing"
	case StateUninitialized:
		return "uninitialized"
	case StateUpToDate:
		return "up_to_date"
	case StateUpgrading:
		return "upgrading"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Recorder receives the outcome of a pass. pkg/metrics provides a Prometheus
// implementation.
type Recorder interface {
	ObserveVersion(current, highest int)
	UnitApplied(u Unit, elapsed time.Duration)
	UnitFailed(u Unit)
	ChainGap(stuckAt int)
	PassFinished(state State, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveVersion(int, int) {}
func (nopRecorder) UnitApplied(Unit, time.Duration) {}
func (nopRecorder) UnitFailed(Unit) {}
func (nopRecorder) ChainGap(int) {}
func (nopRecorder) PassFinished(State, time.Duration) {}

// Options controls a Runner.
type Options struct {
	Logger   *zap.Logger
	Recorder Recorder

	// OnSetupIncomplete is invoked exactly once when the base schema is
	// missing. The host typically prints operator guidance and exits. When
	// nil, the pass just returns ErrSetupIncomplete.
	OnSetupIncomplete func(error)

	// StrictChain fails the pass when the walk stops below the highest known
	// version. By default this is logged and the pass still succeeds.
	StrictChain bool

	// DryRun writes the SQL the pass would execute to the writer instead of
	// executing it. The stored version is not changed.
	DryRun io.Writer

	// DisableTransactions applies statements directly even when the database
	// handle supports transactions.
	DisableTransactions bool
}

// Step describes one applied unit.
type Step struct {
	From       int
	To         int
	Statements int
	Elapsed    time.Duration
}

// Result describes a finished pass.
type Result struct {
	RunID string
	State State

	// From is the version found by the probe; To is the version the pass
	// stopped at.
	From    int
	To      int
	Highest int

	Applied []Step

	// Gap is set when the walk stopped below Highest because no unit starts at To.
	Gap bool

	// Ahead is set when the database reports a version above Highest.
	Ahead bool

	DryRun  bool
	Elapsed time.Duration
}

// Runner drives the upgrade pass. A Runner is not safe for concurrent use;
// the pass is meant to run once at startup before anything else uses the
// schema.
type Runner struct {
	db       Execer
	registry *Registry
	probe    *Probe
	opts     Options
	logger   *zap.Logger
	recorder Recorder
	state    State
}

// NewRunner creates a runner. The probe must read the same database as db.
func NewRunner(db Execer, registry *Registry, probe *Probe, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Runner{
		db:       db,
		registry: registry,
		probe:    probe,
		opts:     opts,
		logger:   logger.With(zap.String("component", "runner")),
		recorder: recorder,
		state:    StateNotProbed,
	}
}

// State returns where the runner is in its pass.
func (r *Runner) State() State {
	return r.state
}

// UpdateToCurrent runs one pass and reports whether the schema ended at a
// usable version. Failures are logged, never returned; a false result means
// the host keeps running on the last good version and retries on the next
// start.
func (r *Runner) UpdateToCurrent(ctx context.Context) bool {
	_, err := r.Update(ctx)
	return err == nil
}

// Update runs one pass:
//
//  1. Probe the current version. A missing base schema invokes
//     OnSetupIncomplete and stops without executing anything.
//  2. If the version equals the highest registered version, stop.
//  3. Otherwise apply the unit starting at the current version, record its
//     target version, and repeat until no unit starts at the current version.
//
// A failing statement stops the pass; the stored version stays at the last
// fully applied unit. The returned Result is always non-nil.
func (r *Runner) Update(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:   uuid.NewString(),
		Highest: r.registry.Highest(),
		DryRun:  r.opts.DryRun != nil,
	}
	logger := r.logger.With(zap.String("run_id", res.RunID))

	err := r.run(ctx, logger, res)

	res.State = r.state
	res.Elapsed = time.Since(start)
	r.recorder.PassFinished(r.state, res.Elapsed)
	return res, err
}

func (r *Runner) run(ctx context.Context, logger *zap.Logger, res *Result) error {
	r.state = StateProbing
	current, err := r.probe.CurrentVersion(ctx)
	if err != nil {
		if dbupdate.IsSetupIncompleteErr(err) {
			r.state = StateUninitialized
			logger.Error("database is not initialized", zap.Error(err))
			if r.opts.OnSetupIncomplete != nil {
				r.opts.OnSetupIncomplete(err)
			}
			return err
		}
		r.state = StateFailed
		logger.Error("could not determine schema version", zap.Error(err))
		return err
	}

	res.From, res.To = current, current
	r.recorder.ObserveVersion(current, res.Highest)

	switch {
	case current == res.Highest:
		r.state = StateUpToDate
		logger.Info("schema is up to date", zap.Int("version", current))
		return nil
	case current > res.Highest:
		r.state = StateUpToDate
		res.Ahead = true
		logger.Warn("database schema is newer than any known migration",
			zap.Int("version", current), zap.Int("highest", res.Highest))
		return nil
	}

	r.state = StateUpgrading
	logger.Info("upgrading schema", zap.Int("from", current), zap.Int("highest", res.Highest))

	if r.opts.DryRun != nil {
		res.To = r.writeDryRun(r.opts.DryRun, current, res.Highest)
		return r.finish(logger, res)
	}

	v := current
	for {
		u, ok := r.registry.Lookup(v)
		if !ok {
			break
		}
		unitLogger := logger.With(zap.Int("from", u.From), zap.Int("to", u.To))
		unitLogger.Info("applying migration unit", zap.Int("statements", len(u.Statements)))

		unitStart := time.Now()
		if err := r.apply(ctx, u); err != nil {
			r.state = StateFailed
			r.recorder.UnitFailed(u)
			r.recorder.ObserveVersion(v, res.Highest)
			unitLogger.Error("migration unit failed, schema left at last good version",
				zap.Int("version", v), zap.Error(err))
			return err
		}
		elapsed := time.Since(unitStart)

		v = u.To
		res.To = v
		res.Applied = append(res.Applied, Step{From: u.From, To: u.To, Statements: len(u.Statements), Elapsed: elapsed})
		r.recorder.UnitApplied(u, elapsed)
		r.recorder.ObserveVersion(v, res.Highest)
	}

	return r.finish(logger, res)
}

// finish classifies where the walk stopped.
func (r *Runner) finish(logger *zap.Logger, res *Result) error {
	if res.To >= res.Highest {
		r.state = StateUpToDate
		logger.Info("schema upgraded",
			zap.Int("from", res.From), zap.Int("to", res.To), zap.Int("units", len(res.Applied)))
		return nil
	}

	res.Gap = true
	if !res.DryRun {
		r.recorder.ChainGap(res.To)
	}
	if r.opts.StrictChain {
		r.state = StateFailed
		err := fmt.Errorf("%w: no unit starts at version %d (highest known %d)",
			dbupdate.ErrChainGap, res.To, res.Highest)
		logger.Error("migration chain is incomplete", zap.Error(err))
		return err
	}
	r.state = StateUpToDate
	logger.Warn("no migration unit starts at the current version, stopping below highest",
		zap.Int("version", res.To), zap.Int("highest", res.Highest))
	return nil
}

// apply runs a unit's statements and records its target version, inside a
// transaction when the handle supports one.
func (r *Runner) apply(ctx context.Context, u Unit) error {
	if txer, ok := r.db.(txBeginner); ok && !r.opts.DisableTransactions {
		tx, err := txer.BeginTx(ctx, nil)
		if err != nil {
			return &UnitError{From: u.From, To: u.To, Statement: -1, Err: fmt.Errorf("starting transaction: %w", err)}
		}
		defer func() { _ = tx.Rollback() }()

		if err := r.applyWith(ctx, tx, u); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return &UnitError{From: u.From, To: u.To, Statement: -1, Err: fmt.Errorf("committing: %w", err)}
		}
		return nil
	}

	// Fall back to non-transactional (for *sql.Conn or when disabled)
	return r.applyWith(ctx, r.db, u)
}

func (r *Runner) applyWith(ctx context.Context, db Execer, u Unit) error {
	for i, stmt := range u.Statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &UnitError{From: u.From, To: u.To, Statement: i, Err: err}
		}
	}
	if err := r.probe.persistVersion(ctx, db, u.To); err != nil {
		return &UnitError{From: u.From, To: u.To, Statement: -1, Err: err}
	}
	return nil
}

// writeDryRun renders the pending chain and returns the version it ends at.
func (r *Runner) writeDryRun(w io.Writer, current, highest int) int {
	chain := r.registry.Chain(current)
	end := r.registry.ChainEnd(current)

	_, _ = fmt.Fprintf(w, "-- dbupdate migration (dry-run)\n")
	_, _ = fmt.Fprintf(w, "-- Dialect: %s\n", r.probe.Dialect().Name())
	_, _ = fmt.Fprintf(w, "-- Current version: %d\n", current)
	_, _ = fmt.Fprintf(w, "-- Target version: %d (highest known %d)\n", end, highest)
	_, _ = fmt.Fprintf(w, "\n")

	for _, u := range chain {
		_, _ = fmt.Fprintf(w, "-- ============================================================\n")
		_, _ = fmt.Fprintf(w, "-- Unit %s (%d statements)\n", u, len(u.Statements))
		_, _ = fmt.Fprintf(w, "-- ============================================================\n\n")
		for _, stmt := range u.Statements {
			_, _ = fmt.Fprintf(w, "%s\n\n", terminate(stmt))
		}
		_, _ = fmt.Fprintf(w, "%s\n\n", r.probe.renderPersist(u.To))
	}

	if end < highest {
		_, _ = fmt.Fprintf(w, "-- WARNING: no unit starts at version %d\n", end)
	}
	return end
}

func terminate(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if strings.HasSuffix(stmt, ";") {
		return stmt
	}
	return stmt + ";"
}

// Status is a read-only view of where the schema stands.
type Status struct {
	// State is StateUninitialized, StateUpToDate, or StateUpgrading when
	// units are pending.
	State   State
	Current int
	Highest int

	// Pending lists the units the next pass would apply.
	Pending []Unit

	// Target is the version the next pass would stop at.
	Target int

	Gap   bool
	Ahead bool
}

// Status probes the database without changing it. A missing base schema is
// reported as StateUninitialized rather than an error, and OnSetupIncomplete
// is not invoked.
func (r *Runner) Status(ctx context.Context) (*Status, error) {
	st := &Status{Highest: r.registry.Highest()}

	current, err := r.probe.CurrentVersion(ctx)
	if err != nil {
		if errors.Is(err, dbupdate.ErrSetupIncomplete) {
			st.State = StateUninitialized
			return st, nil
		}
		return nil, err
	}

	st.Current = current
	st.Pending = r.registry.Chain(current)
	st.Target = r.registry.ChainEnd(current)
	st.Ahead = current > st.Highest
	st.Gap = st.Target < st.Highest

	if len(st.Pending) == 0 {
		st.State = StateUpToDate
	} else {
		st.State = StateUpgrading
	}
	return st, nil
}
