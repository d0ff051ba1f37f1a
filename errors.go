package dbupdate

import "errors"

// Sentinel errors for the migration engine.
//
// ErrSetupIncomplete is the only one that should stop the process: it means the
// database was never bootstrapped and no amount of retrying will fix it. The
// others describe a pass that could not complete; the host keeps running at the
// last good version.
var (
	// ErrSetupIncomplete is returned when the base schema is missing entirely.
	// Apply sql/create.sql (or run `dbupdate init`) before starting the bot.
	ErrSetupIncomplete = errors.New("dbupdate: base schema not found")

	// ErrVersionProbe is returned when the base or metadata table cannot be
	// checked, and, with strict probing enabled, when the stored version cannot
	// be read or parsed. Without strict probing a failed read is logged and
	// treated as version 0.
	ErrVersionProbe = errors.New("dbupdate: reading schema version")

	// ErrChainGap is returned in strict chain mode when the walk stops below the
	// highest known version because no unit starts at the current version.
	ErrChainGap = errors.New("dbupdate: migration chain has a gap")

	// ErrDuplicateUnit is returned when two units start at the same version.
	ErrDuplicateUnit = errors.New("dbupdate: duplicate migration unit")

	// ErrInvalidUnit is returned for a unit that does not move the version
	// forward or carries a blank statement.
	ErrInvalidUnit = errors.New("dbupdate: invalid migration unit")
)

// IsSetupIncompleteErr returns true if err is or wraps ErrSetupIncomplete.
func IsSetupIncompleteErr(err error) bool {
	return errors.Is(err, ErrSetupIncomplete)
}

// IsVersionProbeErr returns true if err is or wraps ErrVersionProbe.
func IsVersionProbeErr(err error) bool {
	return errors.Is(err, ErrVersionProbe)
}

// IsChainGapErr returns true if err is or wraps ErrChainGap.
func IsChainGapErr(err error) bool {
	return errors.Is(err, ErrChainGap)
}

// IsDuplicateUnitErr returns true if err is or wraps ErrDuplicateUnit.
func IsDuplicateUnitErr(err error) bool {
	return errors.Is(err, ErrDuplicateUnit)
}

// IsInvalidUnitErr returns true if err is or wraps ErrInvalidUnit.
func IsInvalidUnitErr(err error) bool {
	return errors.Is(err, ErrInvalidUnit)
}
