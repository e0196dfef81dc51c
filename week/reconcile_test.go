package week_test

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/weekplan/objective"
	"github.com/warp/weekplan/store/memory"
	"github.com/warp/weekplan/week"
)

// seedDate lies in week-2025-3-17, away from the drifted records below.
var seedDate = time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)

// driftedStore holds a padded legacy id and a record starting mid-week.
func driftedStore(t *testing.T) *memory.Memory {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutWeekRange(ctx, week.Record{
		ID:        "week-2025-03-03",
		StartDate: date(2025, time.March, 3),
		EndDate:   date(2025, time.March, 9),
		Label:     "legacy import",
	}))
	require.NoError(t, store.PutWeekRange(ctx, week.Record{
		ID:        "week-2025-3-10",
		StartDate: date(2025, time.March, 12),
		EndDate:   date(2025, time.March, 16),
		Label:     "Mar 12 - Mar 16, 2025",
	}))
	return store
}

// =============================================================================
// COMPUTE CORRECTION
// =============================================================================

func TestComputeCorrection_CanonicalRecord(t *testing.T) {
	_, ok := week.ComputeCorrection(canonical(2025, time.March, 3))

	assert.False(t, ok)
}

func TestComputeCorrectionIn_FixedOffsetAcrossDST(t *testing.T) {
	// GIVEN: a canonical Paris week read back with fixed offsets, as stores
	// return it; clocks move forward on the Sunday
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	rec := week.NewRecord(week.MustOf(time.Date(2025, time.March, 26, 12, 0, 0, 0, paris)))
	rec.StartDate = rec.StartDate.In(time.FixedZone("", 1*60*60))
	rec.EndDate = rec.EndDate.In(time.FixedZone("", 2*60*60))

	// WHEN
	_, ok := week.ComputeCorrectionIn(rec, paris)

	// THEN
	assert.False(t, ok)
}

func TestComputeCorrectionIn_MovesStartToLocation(t *testing.T) {
	// GIVEN: a week stored at UTC midnight
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	rec := canonical(2025, time.March, 3)

	// WHEN: corrected for Paris
	patch, ok := week.ComputeCorrectionIn(rec, paris)

	// THEN: same week, Paris boundaries
	require.True(t, ok)
	assert.Equal(t, "week-2025-3-3", *patch.ID)
	assert.True(t, patch.StartDate.Equal(time.Date(2025, time.March, 3, 0, 0, 0, 0, paris)))
	assert.True(t, patch.EndDate.Equal(time.Date(2025, time.March, 9, 23, 59, 59, int(999*time.Millisecond), paris)))
}

func TestComputeCorrection_PaddedID(t *testing.T) {
	// GIVEN: right boundaries, legacy zero-padded id
	rec := canonical(2025, time.March, 3)
	rec.ID = "week-2025-03-03"

	// WHEN
	patch, ok := week.ComputeCorrection(rec)

	// THEN
	require.True(t, ok)
	assert.Equal(t, "week-2025-3-3", *patch.ID)
	assert.Equal(t, date(2025, time.March, 3), *patch.StartDate)
	assert.Equal(t, weekEnd(2025, time.March, 9), *patch.EndDate)
	assert.Nil(t, patch.Label, "labels are never rewritten")
}

func TestComputeCorrection_MidnightEnd(t *testing.T) {
	rec := canonical(2025, time.March, 3)
	rec.EndDate = date(2025, time.March, 9)

	patch, ok := week.ComputeCorrection(rec)

	require.True(t, ok)
	assert.Equal(t, rec.ID, *patch.ID)
	assert.Equal(t, weekEnd(2025, time.March, 9), *patch.EndDate)
}

func TestComputeCorrection_MidWeekStart(t *testing.T) {
	rec := week.Record{ID: "week-2025-3-10", StartDate: date(2025, time.March, 12), EndDate: date(2025, time.March, 16)}

	patch, ok := week.ComputeCorrection(rec)

	require.True(t, ok)
	assert.Equal(t, "week-2025-3-10", *patch.ID)
	assert.Equal(t, date(2025, time.March, 10), *patch.StartDate)
}

func TestComputeCorrection_ZeroStart(t *testing.T) {
	_, ok := week.ComputeCorrection(week.Record{ID: "broken"})

	assert.False(t, ok)
}

// =============================================================================
// RECONCILE PASS
// =============================================================================

func TestReconcile_CorrectsDriftedRecords(t *testing.T) {
	// GIVEN
	ctx := context.Background()
	store := driftedStore(t)
	rc := week.NewReconciler(store, week.WithSeedDate(seedDate))

	// WHEN
	report, err := rc.ReconcileWeekRanges(ctx)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "week-2025-3-17", report.SeedWeekID)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Corrected)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Failed)
	assert.True(t, report.Changed())
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	_, err = store.GetWeekRangeByID(ctx, "week-2025-03-03")
	assert.True(t, week.IsNotFound(err), "padded id is gone")

	renamed, err := store.GetWeekRangeByID(ctx, "week-2025-3-3")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 3), renamed.StartDate)
	assert.Equal(t, weekEnd(2025, time.March, 9), renamed.EndDate)
	assert.Equal(t, "legacy import", renamed.Label)

	moved, err := store.GetWeekRangeByID(ctx, "week-2025-3-10")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 10), moved.StartDate)
	assert.Equal(t, weekEnd(2025, time.March, 16), moved.EndDate)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := driftedStore(t)
	rc := week.NewReconciler(store, week.WithSeedDate(seedDate))
	_, err := rc.ReconcileWeekRanges(ctx)
	require.NoError(t, err)
	before, err := store.GetWeekRanges(ctx)
	require.NoError(t, err)

	// WHEN: a second pass
	report, err := rc.ReconcileWeekRanges(ctx)

	// THEN: nothing is written
	require.NoError(t, err)
	assert.False(t, report.Changed())
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 3, report.Unchanged)
	after, err := store.GetWeekRanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReconcile_CreatesSeedWeekOnEmptyStore(t *testing.T) {
	store := memory.New()
	rc := week.NewReconciler(store, week.WithSeedDate(seedDate))

	report, err := rc.ReconcileWeekRanges(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Unchanged)
}

func TestReconcile_DefaultSeedIsCurrentWeek(t *testing.T) {
	restore := week.Now
	t.Cleanup(func() { week.Now = restore })
	week.Now = func() time.Time { return time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC) }

	report, err := week.NewReconciler(memory.New()).ReconcileWeekRanges(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "week-2025-3-3", report.SeedWeekID)
}

func TestReconcile_RenameCollisionIsSkipped(t *testing.T) {
	// GIVEN: a legacy record and its canonical twin
	ctx := context.Background()
	store := memory.New()
	legacy := canonical(2025, time.March, 3)
	legacy.ID = "week-2025-03-03"
	require.NoError(t, store.PutWeekRange(ctx, legacy))
	require.NoError(t, store.PutWeekRange(ctx, canonical(2025, time.March, 3)))
	rc := week.NewReconciler(store, week.WithSeedDate(seedDate))

	// WHEN
	report, err := rc.ReconcileWeekRanges(ctx)

	// THEN: the pass continues, the failure is reported
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], week.ErrWeekRangeExists)
	var corrErr *week.CorrectionError
	require.ErrorAs(t, report.Failures[0], &corrErr)
	assert.Equal(t, "week-2025-03-03", corrErr.RecordID)
	assert.Equal(t, "week-2025-3-3", corrErr.TargetID)
	assert.True(t, corrErr.Conflict())
	assert.Contains(t, corrErr.Error(), "blocked by stored record week-2025-3-3")
	assert.Equal(t, 2, report.Unchanged)

	// AND: repeating the pass fails the same way and changes nothing
	again, err := rc.ReconcileWeekRanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Failed)
	assert.False(t, again.Changed())
	_, err = store.GetWeekRangeByID(ctx, "week-2025-03-03")
	assert.NoError(t, err)
}

func TestReconcile_RejectedUpdateDoesNotStopPass(t *testing.T) {
	ctx := context.Background()
	store := driftedStore(t)
	boom := errors.New("disk full")
	store.FailUpdates = map[string]error{"week-2025-03-03": boom}
	rc := week.NewReconciler(store, week.WithSeedDate(seedDate))

	report, err := rc.ReconcileWeekRanges(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Corrected)
	assert.ErrorIs(t, report.Failures[0], boom)

	// the failed record is left exactly as it was
	legacy, err := store.GetWeekRangeByID(ctx, "week-2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 9), legacy.EndDate)
}

func TestReconcile_ZeroStartDateIsAFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.PutWeekRange(ctx, week.Record{ID: "broken"}))
	rc := week.NewReconciler(store, week.WithSeedDate(seedDate))

	report, err := rc.ReconcileWeekRanges(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Failures[0], week.ErrInvalidDate)
}

type listFailingStore struct {
	*memory.Memory
	err error
}

func (s listFailingStore) GetWeekRanges(context.Context) ([]week.Record, error) {
	return nil, s.err
}

func TestReconcile_ListFailureAbortsPass(t *testing.T) {
	boom := errors.New("connection refused")
	store := listFailingStore{Memory: memory.New(), err: boom}
	rc := week.NewReconciler(store, week.WithSeedDate(seedDate))

	report, err := rc.ReconcileWeekRanges(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, report.Checked)
}

func TestReconcile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rc := week.NewReconciler(driftedStore(t), week.WithSeedDate(seedDate))

	_, err := rc.ReconcileWeekRanges(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconcile_RenameMovesObjectives(t *testing.T) {
	// GIVEN: an objective filed under the padded legacy id
	ctx := context.Background()
	store := driftedStore(t)
	require.NoError(t, store.CreateProduct(ctx, objective.Product{ID: "p1", Name: "Legacy"}))
	require.NoError(t, store.CreateObjective(ctx, objective.Objective{ID: "o1", ProductID: "p1", WeekID: "week-2025-03-03", Title: "Migrate"}))

	// WHEN
	_, err := week.NewReconciler(store, week.WithSeedDate(seedDate)).ReconcileWeekRanges(ctx)

	// THEN: it follows its week to the canonical id
	require.NoError(t, err)
	objectives, err := store.GetObjectives(ctx, "p1", "week-2025-3-3")
	require.NoError(t, err)
	require.Len(t, objectives, 1)
	assert.Equal(t, "o1", objectives[0].ID)
}

func TestReconcile_Observer(t *testing.T) {
	var kinds []week.EventKind
	rc := week.NewReconciler(driftedStore(t),
		week.WithSeedDate(seedDate),
		week.WithObserver(func(e week.Event) { kinds = append(kinds, e.Kind) }),
	)

	_, err := rc.ReconcileWeekRanges(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []week.EventKind{
		week.EventCreated,
		week.EventCorrected,
		week.EventCorrected,
		week.EventUnchanged,
	}, kinds)
}

// =============================================================================
// ENSURE WEEK EXISTS
// =============================================================================

func TestEnsureWeekExists(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rc := week.NewReconciler(store)

	// WHEN: first reference
	rec, created, err := rc.EnsureWeekExists(ctx, date(2025, time.March, 5))

	// THEN
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "week-2025-3-3", rec.ID)
	assert.Equal(t, "Mar 3 - Mar 9, 2025", rec.Label)

	// WHEN: any other day of the same week
	again, created, err := rc.EnsureWeekExists(ctx, date(2025, time.March, 9))

	// THEN: the stored record is returned, nothing is created
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rec.ID, again.ID)
	all, err := store.GetWeekRanges(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEnsureWeekExists_LeavesDriftedRecordAlone(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	drifted := canonical(2025, time.March, 3)
	drifted.EndDate = date(2025, time.March, 9)
	require.NoError(t, store.PutWeekRange(ctx, drifted))

	rec, created, err := week.NewReconciler(store).EnsureWeekExists(ctx, date(2025, time.March, 4))

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, date(2025, time.March, 9), rec.EndDate)
}

func TestEnsureWeekExists_ReturnsRecordUnderLegacyID(t *testing.T) {
	// GIVEN: the week stored only under a padded id
	ctx := context.Background()
	store := driftedStore(t)

	// WHEN
	rec, created, err := week.NewReconciler(store).EnsureWeekExists(ctx, date(2025, time.March, 5))

	// THEN: no canonical twin is created
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "week-2025-03-03", rec.ID)
	all, err := store.GetWeekRanges(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReconcile_SeedInLegacyWeek(t *testing.T) {
	// GIVEN: the seed falls in the week stored under a padded id
	ctx := context.Background()
	store := driftedStore(t)
	rc := week.NewReconciler(store, week.WithSeedDate(date(2025, time.March, 5)))

	// WHEN
	report, err := rc.ReconcileWeekRanges(ctx)

	// THEN: the legacy record is renamed instead of colliding with a twin
	require.NoError(t, err)
	assert.Equal(t, "week-2025-3-3", report.SeedWeekID)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 2, report.Corrected)
	assert.Equal(t, 0, report.Failed)
	_, err = store.GetWeekRangeByID(ctx, "week-2025-3-3")
	assert.NoError(t, err)
}

func TestEnsureWeekExists_InvalidDate(t *testing.T) {
	_, _, err := week.NewReconciler(memory.New()).EnsureWeekExists(context.Background(), time.Time{})

	assert.ErrorIs(t, err, week.ErrInvalidDate)
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

func TestReport_Run(t *testing.T) {
	report := week.Report{
		SeedWeekID: "week-2025-3-17",
		Checked:    3,
		Failed:     2,
		Failures:   []error{errors.New("a"), errors.New("b")},
	}

	run := report.Run("run-1", "cli")

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "cli", run.Trigger)
	assert.Equal(t, 3, run.Checked)
	assert.Equal(t, "a; b", run.Error)
}

func TestEnsureWeekExists_WithLocation(t *testing.T) {
	// GIVEN: an instant that is Monday in UTC but still Sunday in New York
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	rc := week.NewReconciler(memory.New(), week.WithLocation(ny))

	// WHEN
	rec, created, err := rc.EnsureWeekExists(context.Background(), time.Date(2025, time.March, 10, 2, 0, 0, 0, time.UTC))

	// THEN: the week is the one containing that Sunday in New York
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "week-2025-3-3", rec.ID)
	assert.True(t, rec.EndDate.Equal(time.Date(2025, time.March, 9, 23, 59, 59, int(999*time.Millisecond), ny)))
}
