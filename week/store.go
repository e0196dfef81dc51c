/*
store.go - Persistence interface for week range records

PURPOSE:
  Week ranges live in an external document store. The week package only needs
  four operations: list, get by id, create, and patch. Objectives and tasks
  have their own interface in the objective package.

ATOMICITY:
  UpdateWeekRange must apply a patch as a single write. A record is either
  fully corrected or left as it was. Patches may change the record id; the
  store rejects a rename onto an existing id with ErrWeekRangeExists.

IMPLEMENTATIONS:
  - store/sqlite: Default persistent store
  - store/redis:  JSON documents in Redis
  - store/memory: In-memory for tests and demos

SEE ALSO:
  - reconcile.go: The only writer of corrections
*/
package week

import (
	"context"
	"time"
)

// =============================================================================
// RECORD - Persisted week range
// =============================================================================

// Record is a stored week range. Its boundaries should equal Of(StartDate)
// but may drift through manual edits or legacy data.
type Record struct {
	ID        string
	StartDate time.Time
	EndDate   time.Time
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord builds the canonical record for a week.
func NewRecord(w Identity) Record {
	return Record{
		ID:        w.ID,
		StartDate: w.Start,
		EndDate:   w.End,
		Label:     w.Label(),
	}
}

// Range returns the stored boundaries.
func (r Record) Range() Range {
	return Range{Start: r.StartDate, End: r.EndDate}
}

// Patch is a partial update of a Record. Nil fields are left untouched.
type Patch struct {
	ID        *string
	StartDate *time.Time
	EndDate   *time.Time
	Label     *string
}

// IsEmpty returns true if the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.ID == nil && p.StartDate == nil && p.EndDate == nil && p.Label == nil
}

// Apply returns r with the patch applied.
func (p Patch) Apply(r Record) Record {
	if p.ID != nil {
		r.ID = *p.ID
	}
	if p.StartDate != nil {
		r.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		r.EndDate = *p.EndDate
	}
	if p.Label != nil {
		r.Label = *p.Label
	}
	return r
}

// =============================================================================
// STORE
// =============================================================================

// Store persists week range records.
type Store interface {
	// GetWeekRanges returns every record, in a stable order.
	GetWeekRanges(ctx context.Context) ([]Record, error)

	// GetWeekRangeByID returns ErrWeekRangeNotFound when absent.
	GetWeekRangeByID(ctx context.Context, id string) (Record, error)

	// CreateWeekRange returns ErrWeekRangeExists if the id is taken.
	CreateWeekRange(ctx context.Context, r Record) error

	// UpdateWeekRange applies patch to the record with id atomically.
	UpdateWeekRange(ctx context.Context, id string, patch Patch) error
}
