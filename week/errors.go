/*
errors.go - Error types for week identity, storage and reconciliation

ERROR CATEGORIES:
  1. Date errors   - a week cannot be derived (zero time, malformed id)
  2. Store errors  - missing or conflicting week range records

Parsing a shared-plan token never returns an error. It reports ok=false and
callers fall back to the current week.

SEE ALSO:
  - identity.go: Returns InvalidDateError
  - store.go: Store implementations return the sentinels below
*/
package week

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when a week is requested for an unusable date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidWeekID is returned when a string is not of the form week-Y-M-D.
	ErrInvalidWeekID = errors.New("invalid week id")

	// ErrWeekRangeNotFound is returned by stores when no record has the id.
	ErrWeekRangeNotFound = errors.New("week range not found")

	// ErrWeekRangeExists is returned by stores when a create or a rename
	// would produce a second record with the same id.
	ErrWeekRangeExists = errors.New("week range already exists")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidDateError carries the offending value.
type InvalidDateError struct {
	Value time.Time
	Input string
}

func (e *InvalidDateError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("invalid date %q", e.Input)
	}
	return fmt.Sprintf("invalid date %v", e.Value)
}

func (e *InvalidDateError) Unwrap() error {
	return ErrInvalidDate
}

// CorrectionError records a reconciliation update that the store rejected.
type CorrectionError struct {
	RecordID string
	TargetID string
	Err      error
}

func (e *CorrectionError) Error() string {
	if e.Conflict() {
		return fmt.Sprintf("correct week range %s -> %s: blocked by stored record %s (merge the two records): %v",
			e.RecordID, e.TargetID, e.TargetID, e.Err)
	}
	return fmt.Sprintf("correct week range %s -> %s: %v", e.RecordID, e.TargetID, e.Err)
}

// Conflict returns true when another stored record already holds TargetID.
func (e *CorrectionError) Conflict() bool {
	return errors.Is(e.Err, ErrWeekRangeExists)
}

func (e *CorrectionError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing week range.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWeekRangeNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidWeekID)
}
