/*
Package week derives, resolves and reconciles planner weeks.

PURPOSE:
  Every objective in the planner belongs to a calendar week. A week is
  identified by a stable key derived from its Monday, so the same date always
  maps to the same record no matter which screen, import or job asked for it.

KEY CONCEPTS:
  - Identity: canonical (ID, Start, End) for a Monday-start week
  - Range:    boundaries supplied from outside (shared links, queries)
  - Record:   a persisted week range, which may drift from its Identity
  - Reconciler: corrects drifted records and creates missing ones

WEEK RULES:
  Start is Monday 00:00:00 in the location of the input date.
  End is the following Sunday 23:59:59.999.
  ID is "week-{year}-{month}-{day}" of Start, month and day unpadded.

  Of(2025-03-05) => week-2025-3-3, [Mon 3 Mar 00:00, Sun 9 Mar 23:59:59.999]
  Of(2025-03-09) => week-2025-3-3 (Sunday rolls back six days)

SEE ALSO:
  - shared.go: Shared-plan token parsing
  - resolver.go: Best-match lookup over stored records
  - reconcile.go: Record maintenance
*/
package week

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IDPrefix starts every week identifier.
const IDPrefix = "week-"

// Now is the clock used by Current. Tests replace it.
var Now = time.Now

// =============================================================================
// IDENTITY - Canonical week triple
// =============================================================================

// Identity is the canonical description of one Monday-Sunday week.
type Identity struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Of returns the identity of the week containing t.
// The zero time is rejected with an InvalidDateError.
func Of(t time.Time) (Identity, error) {
	if t.IsZero() {
		return Identity{}, &InvalidDateError{Value: t}
	}
	start := startOfWeek(t)
	return Identity{
		ID:    IDFor(start),
		Start: start,
		End:   endOfWeek(start),
	}, nil
}

// MustOf is Of for dates already known to be valid.
func MustOf(t time.Time) Identity {
	id, err := Of(t)
	if err != nil {
		panic(err)
	}
	return id
}

// Current returns the identity of the week containing Now().
func Current() Identity {
	return MustOf(Now())
}

// IDFor formats the week id for a Monday start date.
func IDFor(start time.Time) string {
	return fmt.Sprintf("%s%d-%d-%d", IDPrefix, start.Year(), int(start.Month()), start.Day())
}

// ParseID returns the identity named by a week id, in loc.
// The date in the id must be a Monday.
func ParseID(id string, loc *time.Location) (Identity, error) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidWeekID, id)
	}
	parts := strings.Split(rest, "-")
	if len(parts) != 3 {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidWeekID, id)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return Identity{}, fmt.Errorf("%w: %q", ErrInvalidWeekID, id)
		}
		nums[i] = n
	}
	start, ok := calendarDate(nums[0], nums[1], nums[2], loc)
	if !ok || start.Weekday() != time.Monday {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidWeekID, id)
	}
	return Of(start)
}

// Contains returns true if t lies within [Start, End].
func (w Identity) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Next returns the week after w.
func (w Identity) Next() Identity {
	return MustOf(w.Start.AddDate(0, 0, 7))
}

// Previous returns the week before w.
func (w Identity) Previous() Identity {
	return MustOf(w.Start.AddDate(0, 0, -7))
}

// Range returns the boundaries of w.
func (w Identity) Range() Range {
	return Range{Start: w.Start, End: w.End}
}

// Days returns the seven midnights of the week, Monday first.
func (w Identity) Days() []time.Time {
	days := make([]time.Time, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, w.Start.AddDate(0, 0, i))
	}
	return days
}

// Label returns the human-readable label stored on new records,
// e.g. "Mar 3 - Mar 9, 2025" or "Dec 29, 2025 - Jan 4, 2026".
func (w Identity) Label() string {
	if w.Start.Year() != w.End.Year() {
		return w.Start.Format("Jan 2, 2006") + " - " + w.End.Format("Jan 2, 2006")
	}
	return w.Start.Format("Jan 2") + " - " + w.End.Format("Jan 2, 2006")
}

func (w Identity) String() string {
	return w.ID + " [" + w.Start.Format("2006-01-02") + ", " + w.End.Format("2006-01-02") + "]"
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// startOfWeek returns Monday 00:00 of the week containing t, in t's location.
func startOfWeek(t time.Time) time.Time {
	back := int(t.Weekday()) - 1
	if back < 0 {
		back = 6 // Sunday
	}
	return time.Date(t.Year(), t.Month(), t.Day()-back, 0, 0, 0, 0, t.Location())
}

func endOfWeek(start time.Time) time.Time {
	return time.Date(start.Year(), start.Month(), start.Day()+6, 23, 59, 59, int(999*time.Millisecond), start.Location())
}

// calendarDate builds a local midnight and reports whether the components
// named a real calendar day (time.Date silently normalises 32 Jan to 1 Feb).
func calendarDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// SameDay returns true if a and b fall on the same calendar day,
// each read in its own location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
