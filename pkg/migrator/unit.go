package migrator

import (
	"fmt"
	"strings"

	"github.com/novabot/dbupdate"
)

// Unit moves the schema from one version to a strictly higher one by running
// its statements in order. Units are plain values built once from static data.
type Unit struct {
	// From is the version the unit applies to.
	From int

	// To is the version recorded once every statement has succeeded.
	To int

	// Statements are executed verbatim, in order. An empty list is allowed and
	// simply advances the version.
	Statements []string
}

// Validate checks that the unit moves the version forward and carries no
// blank statements.
func (u Unit) Validate() error {
	if u.From < 0 {
		return fmt.Errorf("%w: unit %s starts below version 0", dbupdate.ErrInvalidUnit, u)
	}
	if u.To <= u.From {
		return fmt.Errorf("%w: unit %s does not move the version forward", dbupdate.ErrInvalidUnit, u)
	}
	for i, stmt := range u.Statements {
		if strings.TrimSpace(stmt) == "" {
			return fmt.Errorf("%w: unit %s statement %d is blank", dbupdate.ErrInvalidUnit, u, i)
		}
	}
	return nil
}

// String renders the unit as "from -> to".
func (u Unit) String() string {
	return fmt.Sprintf("%d -> %d", u.From, u.To)
}

// UnitError reports a unit that could not be applied.
type UnitError struct {
	From int
	To   int

	// Statement is the zero-based index of the failing statement, or -1 when
	// the statements succeeded but the transaction or version update failed.
	Statement int

	Err error
}

func (e *UnitError) Error() string {
	if e.Statement < 0 {
		return fmt.Sprintf("applying unit %d -> %d: %v", e.From, e.To, e.Err)
	}
	return fmt.Sprintf("applying unit %d -> %d: statement %d: %v", e.From, e.To, e.Statement, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}
