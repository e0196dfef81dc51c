/*
reconcile.go - Week range maintenance

PURPOSE:
  Stored week ranges drift: users edit them, legacy imports used other
  conventions, ids were written by older clients. The Reconciler brings every
  record back in line with Of(record.StartDate) and makes sure the seed week
  exists.

DESIGN:
  ComputeCorrection is a pure diff from a record to the patch that fixes it.
  ReconcileWeekRanges is the I/O loop that applies patches one record at a
  time. A rejected write is logged, reported and skipped; only a failure to
  list the records aborts a pass.

IDEMPOTENCY:
  A corrected record produces no patch on the next pass. Records whose
  correction is rejected (e.g. the canonical id is already taken) are
  rejected again the same way, so repeated passes never change more state.

SEE ALSO:
  - api/scheduler.go: Periodic passes
  - cmd/server: "reconcile" command
*/
package week

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// CORRECTION - Pure diff
// =============================================================================

// ComputeCorrection returns the patch that makes r canonical, and false when
// r already matches Of(r.StartDate). The label is never touched.
func ComputeCorrection(r Record) (Patch, bool) {
	return ComputeCorrectionIn(r, nil)
}

// ComputeCorrectionIn is ComputeCorrection with the week computed in loc.
// Stores hand times back with a fixed offset, so a week crossing a DST
// change only has its canonical end when rebuilt in the named zone.
// A nil loc keeps the start's own location.
func ComputeCorrectionIn(r Record, loc *time.Location) (Patch, bool) {
	canonical, err := Of(inLocation(r.StartDate, loc))
	if err != nil {
		return Patch{}, false
	}
	if r.ID == canonical.ID && r.StartDate.Equal(canonical.Start) && r.EndDate.Equal(canonical.End) {
		return Patch{}, false
	}
	return Patch{
		ID:        &canonical.ID,
		StartDate: &canonical.Start,
		EndDate:   &canonical.End,
	}, true
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil || t.IsZero() {
		return t
	}
	return t.In(loc)
}

// =============================================================================
// OBSERVER - Reports what a pass did, record by record
// =============================================================================

// EventKind classifies a reconciliation event.
type EventKind string

const (
	EventUnchanged EventKind = "unchanged"
	EventCorrected EventKind = "corrected"
	EventCreated   EventKind = "created"
	EventFailed    EventKind = "failed"
)

// Event describes the outcome for one record.
type Event struct {
	Kind   EventKind
	Record Record
	Patch  Patch
	Err    error
}

// Observer receives events as a pass runs. It must not block.
type Observer func(Event)

// Report summarises a reconciliation pass.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	SeedWeekID string
	Checked    int
	Corrected  int
	Created    int
	Unchanged  int
	Failed     int
	Failures   []error
}

// Changed returns true if the pass wrote anything.
func (r Report) Changed() bool {
	return r.Corrected > 0 || r.Created > 0
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler corrects stored week ranges and creates missing ones.
type Reconciler struct {
	store    Store
	log      zerolog.Logger
	observer Observer
	seed     func() time.Time
	loc      *time.Location
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. The default discards output.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// WithObserver registers a callback for every record outcome.
func WithObserver(o Observer) Option {
	return func(r *Reconciler) { r.observer = o }
}

// WithSeedDate pins the week that every pass makes sure exists.
// Without it the seed is the current week.
func WithSeedDate(t time.Time) Option {
	return func(r *Reconciler) { r.seed = func() time.Time { return t } }
}

// WithLocation computes every week in loc instead of the location the
// date or stored record happens to carry.
func WithLocation(loc *time.Location) Option {
	return func(r *Reconciler) { r.loc = loc }
}

// NewReconciler creates a reconciler over store.
func NewReconciler(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store: store,
		log:   zerolog.Nop(),
		seed:  func() time.Time { return Now() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureWeekExists creates the canonical record for the week containing date
// unless that week is already stored, either under its canonical id or as a
// drifted record the next pass would rename to it. Existing records are
// returned untouched. The bool reports whether a record was created.
func (rc *Reconciler) EnsureWeekExists(ctx context.Context, date time.Time) (Record, bool, error) {
	w, err := Of(inLocation(date, rc.loc))
	if err != nil {
		return Record{}, false, err
	}

	existing, err := rc.store.GetWeekRangeByID(ctx, w.ID)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return Record{}, false, fmt.Errorf("get week range %s: %w", w.ID, err)
	}

	drifted, found, err := rc.findDrifted(ctx, w.ID)
	if err != nil {
		return Record{}, false, err
	}
	if found {
		return drifted, false, nil
	}

	rec := NewRecord(w)
	if err := rc.store.CreateWeekRange(ctx, rec); err != nil {
		if errors.Is(err, ErrWeekRangeExists) {
			// created concurrently
			existing, getErr := rc.store.GetWeekRangeByID(ctx, w.ID)
			if getErr != nil {
				return Record{}, false, fmt.Errorf("get week range %s: %w", w.ID, getErr)
			}
			return existing, false, nil
		}
		return Record{}, false, fmt.Errorf("create week range %s: %w", w.ID, err)
	}

	rc.log.Info().Str("week_id", rec.ID).Str("label", rec.Label).Msg("week range created")
	rc.emit(Event{Kind: EventCreated, Record: rec})
	return rec, true, nil
}

// ReconcileWeekRanges runs one maintenance pass. The returned error is
// non-nil only when the pass could not run at all or ctx was cancelled;
// per-record failures are in the report.
func (rc *Reconciler) ReconcileWeekRanges(ctx context.Context) (report Report, err error) {
	report.StartedAt = time.Now()
	defer func() { report.FinishedAt = time.Now() }()

	seedDate := rc.seed()
	if seed, created, err := rc.EnsureWeekExists(ctx, seedDate); err != nil {
		rc.fail(&report, Record{}, Patch{}, fmt.Errorf("seed week: %w", err))
	} else {
		report.SeedWeekID = seed.ID
		if patch, drifted := ComputeCorrectionIn(seed, rc.loc); drifted {
			report.SeedWeekID = *patch.ID
		}
		if created {
			report.Created++
		}
	}

	records, listErr := rc.store.GetWeekRanges(ctx)
	if listErr != nil {
		rc.log.Error().Err(listErr).Msg("list week ranges failed")
		return report, fmt.Errorf("list week ranges: %w", listErr)
	}

	for _, rec := range records {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		report.Checked++

		if _, err := Of(rec.StartDate); err != nil {
			rc.fail(&report, rec, Patch{}, fmt.Errorf("week range %s: %w", rec.ID, err))
			continue
		}

		patch, ok := ComputeCorrectionIn(rec, rc.loc)
		if !ok {
			report.Unchanged++
			rc.emit(Event{Kind: EventUnchanged, Record: rec})
			continue
		}

		if err := rc.store.UpdateWeekRange(ctx, rec.ID, patch); err != nil {
			rc.fail(&report, rec, patch, &CorrectionError{RecordID: rec.ID, TargetID: *patch.ID, Err: err})
			continue
		}

		report.Corrected++
		rc.log.Info().
			Str("week_id", rec.ID).
			Str("canonical_id", *patch.ID).
			Time("start", *patch.StartDate).
			Time("end", *patch.EndDate).
			Msg("week range corrected")
		rc.emit(Event{Kind: EventCorrected, Record: patch.Apply(rec), Patch: patch})
	}

	rc.log.Info().
		Int("checked", report.Checked).
		Int("corrected", report.Corrected).
		Int("created", report.Created).
		Int("failed", report.Failed).
		Msg("week range reconciliation finished")
	return report, nil
}

// findDrifted looks for a stored record whose canonical id is id.
func (rc *Reconciler) findDrifted(ctx context.Context, id string) (Record, bool, error) {
	records, err := rc.store.GetWeekRanges(ctx)
	if err != nil {
		return Record{}, false, fmt.Errorf("list week ranges: %w", err)
	}
	for _, r := range records {
		w, err := Of(inLocation(r.StartDate, rc.loc))
		if err == nil && w.ID == id {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

func (rc *Reconciler) fail(report *Report, rec Record, patch Patch, err error) {
	report.Failed++
	report.Failures = append(report.Failures, err)
	rc.log.Warn().Err(err).Str("week_id", rec.ID).Msg("week range reconciliation skipped record")
	rc.emit(Event{Kind: EventFailed, Record: rec, Patch: patch, Err: err})
}

func (rc *Reconciler) emit(e Event) {
	if rc.observer != nil {
		rc.observer(e)
	}
}
