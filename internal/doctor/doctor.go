// Package doctor provides health checks for a bot database's schema versioning.
//
// The doctor command validates that the database can be upgraded by checking
// the migration registry, the base schema, and the version marker.
//
// Example usage:
//
//	d := doctor.New(probe, registry, doctor.Options{})
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/novabot/dbupdate"
	"github.com/novabot/dbupdate/pkg/migrator"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates an issue that will stop the upgrade pass.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Base Schema", "Version Tracking").
	Category string

	// Name is a short identifier for the check.
	Name string

	Status  Status
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Find returns the check with the given name.
func (r *Report) Find(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Print writes the report grouped by category, in the order categories were
// first seen.
func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Options tunes how strictly findings are graded.
type Options struct {
	// StrictChain grades registry gaps and a stuck database as failures,
	// matching a runner configured with StrictChain.
	StrictChain bool
}

// Doctor performs health checks on a database's schema versioning.
type Doctor struct {
	probe    *migrator.Probe
	registry *migrator.Registry
	opts     Options

	// Populated during Run
	inspection *migrator.Inspection
}

// New creates a new Doctor instance.
func New(probe *migrator.Probe, registry *migrator.Registry, opts Options) *Doctor {
	return &Doctor{probe: probe, registry: registry, opts: opts}
}

// Run executes all health checks and returns a report. Only database errors
// are returned; everything else is reported as a check.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	d.checkRegistry(report)

	in, err := d.probe.Inspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspecting database: %w", err)
	}
	d.inspection = in

	if !d.checkBaseSchema(report) {
		return report, nil
	}
	d.checkVersionTracking(report)

	return report, nil
}

func (d *Doctor) gapStatus() Status {
	if d.opts.StrictChain {
		return StatusFail
	}
	return StatusWarn
}

// checkRegistry validates the compiled-in migration chain.
func (d *Doctor) checkRegistry(report *Report) {
	if d.registry.Len() == 0 {
		report.AddCheck(CheckResult{
			Category: "Migration Registry",
			Name:     "units",
			Status:   StatusWarn,
			Message:  "No migration units registered",
			Details:  "The highest known version is 0; migrate will never change the schema",
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Migration Registry",
		Name:     "units",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d migration units registered (highest version %d)", d.registry.Len(), d.registry.Highest()),
		Details:  describeUnits(d.registry.Units()),
	})

	gaps := d.registry.Gaps()
	if len(gaps) > 0 {
		report.AddCheck(CheckResult{
			Category: "Migration Registry",
			Name:     "contiguous",
			Status:   d.gapStatus(),
			Message:  fmt.Sprintf("Migration chain has gaps at versions %s", joinInts(gaps)),
			Details:  "A database reaching one of these versions stops below the highest known version",
			FixHint:  "Add a unit starting at each listed version",
		})
		return
	}

	if end := d.registry.ChainEnd(0); end != d.registry.Highest() {
		report.AddCheck(CheckResult{
			Category: "Migration Registry",
			Name:     "contiguous",
			Status:   d.gapStatus(),
			Message:  fmt.Sprintf("A fresh database stops at version %d, below %d", end, d.registry.Highest()),
			FixHint:  "Add a unit starting at version 0",
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Migration Registry",
		Name:     "contiguous",
		Status:   StatusPass,
		Message:  "Migration chain is contiguous from version 0",
	})
}

// checkBaseSchema reports whether the bootstrap schema has been applied.
func (d *Doctor) checkBaseSchema(report *Report) bool {
	table := d.probe.Config().BaseTable
	if !d.inspection.BaseTableExists {
		report.AddCheck(CheckResult{
			Category: "Base Schema",
			Name:     "base_table",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%s table does not exist", table),
			Details:  "The database has not been initialized; migrate will refuse to run",
			FixHint:  fmt.Sprintf("Run 'dbupdate init' or apply %s to the database", dbupdate.CreateScript),
		})
		return false
	}

	report.AddCheck(CheckResult{
		Category: "Base Schema",
		Name:     "base_table",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%s table exists", table),
	})
	return true
}

// checkVersionTracking validates the metadata table, the marker, and where
// the stored version sits relative to the registry.
func (d *Doctor) checkVersionTracking(report *Report) {
	cfg := d.probe.Config()
	in := d.inspection

	if !in.MetaTableExists {
		report.AddCheck(CheckResult{
			Category: "Version Tracking",
			Name:     "meta_table",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%s table does not exist", cfg.MetaTable),
			Details:  "The database predates version tracking and will be treated as version 0",
			FixHint:  "Run 'dbupdate migrate'",
		})
		d.checkPending(report, 0)
		return
	}

	report.AddCheck(CheckResult{
		Category: "Version Tracking",
		Name:     "meta_table",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%s table exists", cfg.MetaTable),
	})

	if !in.MarkerPresent {
		report.AddCheck(CheckResult{
			Category: "Version Tracking",
			Name:     "marker",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("No %s marker stored", cfg.VersionKey),
			Details:  "The database will be treated as version 0",
			FixHint:  "Run 'dbupdate migrate'",
		})
		d.checkPending(report, 0)
		return
	}

	if in.MarkerErr != nil {
		status := StatusWarn
		if cfg.StrictProbe {
			status = StatusFail
		}
		report.AddCheck(CheckResult{
			Category: "Version Tracking",
			Name:     "marker",
			Status:   status,
			Message:  fmt.Sprintf("%s marker is not a valid version: %q", cfg.VersionKey, in.RawMarker),
			Details:  in.MarkerErr.Error(),
			FixHint:  fmt.Sprintf("Correct the %s row in %s by hand", cfg.VersionKey, cfg.MetaTable),
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Version Tracking",
		Name:     "marker",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Schema version is %d", in.Version),
	})
	d.checkPending(report, in.Version)
}

// checkPending compares the stored version against the registry.
func (d *Doctor) checkPending(report *Report, current int) {
	highest := d.registry.Highest()

	switch {
	case current == highest:
		report.AddCheck(CheckResult{
			Category: "Version Tracking",
			Name:     "pending",
			Status:   StatusPass,
			Message:  "Schema is up to date",
		})
		return
	case current > highest:
		report.AddCheck(CheckResult{
			Category: "Version Tracking",
			Name:     "pending",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Schema version %d is newer than the highest known version %d", current, highest),
			Details:  "The database was upgraded by a newer build",
			FixHint:  "Upgrade dbupdate before running the bot",
		})
		return
	}

	chain := d.registry.Chain(current)
	end := d.registry.ChainEnd(current)
	if end < highest {
		report.AddCheck(CheckResult{
			Category: "Version Tracking",
			Name:     "pending",
			Status:   d.gapStatus(),
			Message:  fmt.Sprintf("Schema can only be upgraded to version %d of %d", end, highest),
			Details:  describeUnits(chain),
			FixHint:  fmt.Sprintf("Add a migration unit starting at version %d", end),
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Version Tracking",
		Name:     "pending",
		Status:   StatusWarn,
		Message:  fmt.Sprintf("%d migration units pending (version %d -> %d)", len(chain), current, end),
		Details:  describeUnits(chain),
		FixHint:  "Run 'dbupdate migrate'",
	})
}

func describeUnits(units []migrator.Unit) string {
	lines := make([]string, 0, len(units))
	for _, u := range units {
		lines = append(lines, fmt.Sprintf("%s (%d statements)", u, len(u.Statements)))
	}
	return strings.Join(lines, "\n")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
