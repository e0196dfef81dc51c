/*
Package storetest holds the behaviour every planner store must share.

USAGE:
  func TestStore(t *testing.T) {
      storetest.Run(t, func(t *testing.T) storetest.Store {
          return newTestStore(t)
      })
  }

Each subtest gets a fresh store from the factory.

SEE ALSO:
  - store/memory, store/sqlite, store/redis: Implementations under test
*/
package storetest

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/weekplan/objective"
	"github.com/warp/weekplan/week"
)

// Store is the full surface a planner backend implements.
type Store interface {
	week.Store
	week.RunLog
	objective.Store
	PutWeekRange(ctx context.Context, r week.Record) error
	Reset(ctx context.Context) error
}

// Factory returns an empty store. It registers its own cleanup.
type Factory func(t *testing.T) Store

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s Store)
	}{
		{"CreateAndGetWeekRange", testCreateAndGetWeekRange},
		{"CreateDuplicateWeekRange", testCreateDuplicateWeekRange},
		{"GetMissingWeekRange", testGetMissingWeekRange},
		{"WeekRangesKeepInsertionOrder", testWeekRangesKeepInsertionOrder},
		{"UpdateWeekRangeBoundaries", testUpdateWeekRangeBoundaries},
		{"UpdateMissingWeekRange", testUpdateMissingWeekRange},
		{"RenameWeekRange", testRenameWeekRange},
		{"RenameOntoExistingWeekRange", testRenameOntoExistingWeekRange},
		{"RenameMovesObjectives", testRenameMovesObjectives},
		{"PutWeekRangeReplaces", testPutWeekRangeReplaces},
		{"ReconciliationRuns", testReconciliationRuns},
		{"Products", testProducts},
		{"Objectives", testObjectives},
		{"Tasks", testTasks},
		{"Reset", testReset},
		{"ReconcilePass", testReconcilePass},
		{"ReconcileKeepsDSTWeekCanonical", testReconcileKeepsDSTWeekCanonical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// =============================================================================
// FIXTURES
// =============================================================================

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func canonical(y int, m time.Month, d int) week.Record {
	return week.NewRecord(week.MustOf(day(y, m, d)))
}

func sameInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.WithinDuration(t, want, got, 0)
}

func ids(records []week.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

// =============================================================================
// WEEK RANGES
// =============================================================================

func testCreateAndGetWeekRange(t *testing.T, s Store) {
	ctx := context.Background()
	rec := canonical(2025, time.March, 3)

	require.NoError(t, s.CreateWeekRange(ctx, rec))

	got, err := s.GetWeekRangeByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "Mar 3 - Mar 9, 2025", got.Label)
	sameInstant(t, rec.StartDate, got.StartDate)
	// millisecond week end survives the round trip
	sameInstant(t, rec.EndDate, got.EndDate)
	assert.False(t, got.CreatedAt.IsZero())
}

func testCreateDuplicateWeekRange(t *testing.T, s Store) {
	ctx := context.Background()
	rec := canonical(2025, time.March, 3)
	require.NoError(t, s.CreateWeekRange(ctx, rec))

	err := s.CreateWeekRange(ctx, rec)

	assert.ErrorIs(t, err, week.ErrWeekRangeExists)
	all, err := s.GetWeekRanges(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testGetMissingWeekRange(t *testing.T, s Store) {
	_, err := s.GetWeekRangeByID(context.Background(), "week-2025-3-3")

	assert.True(t, week.IsNotFound(err))
}

func testWeekRangesKeepInsertionOrder(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateWeekRange(ctx, canonical(2025, time.March, 17)))
	require.NoError(t, s.CreateWeekRange(ctx, canonical(2025, time.March, 3)))
	require.NoError(t, s.CreateWeekRange(ctx, canonical(2025, time.March, 10)))

	all, err := s.GetWeekRanges(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"week-2025-3-17", "week-2025-3-3", "week-2025-3-10"}, ids(all))
}

func testUpdateWeekRangeBoundaries(t *testing.T, s Store) {
	// GIVEN: a record whose end was saved at midnight
	ctx := context.Background()
	rec := canonical(2025, time.March, 3)
	rec.EndDate = day(2025, time.March, 9)
	require.NoError(t, s.PutWeekRange(ctx, rec))
	want := week.MustOf(rec.StartDate)

	// WHEN
	err := s.UpdateWeekRange(ctx, rec.ID, week.Patch{EndDate: &want.End})

	// THEN: only the end moved
	require.NoError(t, err)
	got, err := s.GetWeekRangeByID(ctx, rec.ID)
	require.NoError(t, err)
	sameInstant(t, want.End, got.EndDate)
	sameInstant(t, rec.StartDate, got.StartDate)
	assert.Equal(t, rec.Label, got.Label)
}

func testUpdateMissingWeekRange(t *testing.T, s Store) {
	label := "x"

	err := s.UpdateWeekRange(context.Background(), "week-2025-3-3", week.Patch{Label: &label})

	assert.True(t, week.IsNotFound(err))
}

func testRenameWeekRange(t *testing.T, s Store) {
	// GIVEN: a legacy padded id between two canonical records
	ctx := context.Background()
	legacy := canonical(2025, time.March, 3)
	legacy.ID = "week-2025-03-03"
	require.NoError(t, s.CreateWeekRange(ctx, canonical(2025, time.February, 24)))
	require.NoError(t, s.PutWeekRange(ctx, legacy))
	require.NoError(t, s.CreateWeekRange(ctx, canonical(2025, time.March, 10)))

	// WHEN
	patch, ok := week.ComputeCorrection(legacy)
	require.True(t, ok)
	require.NoError(t, s.UpdateWeekRange(ctx, legacy.ID, patch))

	// THEN: the record answers to its new id only, in the same list position
	_, err := s.GetWeekRangeByID(ctx, "week-2025-03-03")
	assert.True(t, week.IsNotFound(err))
	got, err := s.GetWeekRangeByID(ctx, "week-2025-3-3")
	require.NoError(t, err)
	sameInstant(t, legacy.StartDate, got.StartDate)

	all, err := s.GetWeekRanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"week-2025-2-24", "week-2025-3-3", "week-2025-3-10"}, ids(all))
}

func testRenameOntoExistingWeekRange(t *testing.T, s Store) {
	ctx := context.Background()
	legacy := canonical(2025, time.March, 3)
	legacy.ID = "week-2025-03-03"
	legacy.Label = "legacy"
	require.NoError(t, s.PutWeekRange(ctx, legacy))
	require.NoError(t, s.CreateWeekRange(ctx, canonical(2025, time.March, 3)))
	target := "week-2025-3-3"

	err := s.UpdateWeekRange(ctx, legacy.ID, week.Patch{ID: &target})

	// THEN: rejected, both records untouched
	assert.ErrorIs(t, err, week.ErrWeekRangeExists)
	got, err := s.GetWeekRangeByID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, "legacy", got.Label)
	got, err = s.GetWeekRangeByID(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "Mar 3 - Mar 9, 2025", got.Label)
}

func testRenameMovesObjectives(t *testing.T, s Store) {
	ctx := context.Background()
	legacy := canonical(2025, time.March, 3)
	legacy.ID = "week-2025-03-03"
	require.NoError(t, s.PutWeekRange(ctx, legacy))
	require.NoError(t, s.CreateProduct(ctx, objective.Product{ID: "p1", Name: "Legacy", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateObjective(ctx, newObjective("o1", "p1", legacy.ID)))
	require.NoError(t, s.CreateObjective(ctx, newObjective("o2", "p1", legacy.ID)))
	target := "week-2025-3-3"

	require.NoError(t, s.UpdateWeekRange(ctx, legacy.ID, week.Patch{ID: &target}))

	moved, err := s.GetObjectives(ctx, "p1", target)
	require.NoError(t, err)
	require.Len(t, moved, 2)
	assert.Equal(t, "o1", moved[0].ID)
	assert.Equal(t, target, moved[0].WeekID)
	left, err := s.GetObjectives(ctx, "p1", legacy.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	o, err := s.GetObjective(ctx, "o2")
	require.NoError(t, err)
	assert.Equal(t, target, o.WeekID)
}

func testPutWeekRangeReplaces(t *testing.T, s Store) {
	ctx := context.Background()
	rec := canonical(2025, time.March, 3)
	require.NoError(t, s.PutWeekRange(ctx, rec))
	rec.Label = "edited"
	require.NoError(t, s.PutWeekRange(ctx, rec))

	all, err := s.GetWeekRanges(ctx)

	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "edited", all[0].Label)
}

// =============================================================================
// RUN LOG
// =============================================================================

func testReconciliationRuns(t *testing.T, s Store) {
	ctx := context.Background()
	first := week.Run{ID: "run-1", Trigger: "scheduler", Checked: 3,
		StartedAt: time.Date(2025, time.March, 20, 10, 0, 0, 0, time.UTC), FinishedAt: time.Date(2025, time.March, 20, 10, 0, 1, 0, time.UTC)}
	second := week.Run{ID: "run-2", Trigger: "api", SeedWeekID: "week-2025-3-17", Failed: 1, Error: "boom",
		StartedAt: time.Date(2025, time.March, 20, 11, 0, 0, 0, time.UTC), FinishedAt: time.Date(2025, time.March, 20, 11, 0, 1, 0, time.UTC)}
	require.NoError(t, s.SaveReconciliationRun(ctx, first))
	require.NoError(t, s.SaveReconciliationRun(ctx, second))

	runs, err := s.GetReconciliationRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "week-2025-3-17", runs[0].SeedWeekID)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, 3, runs[1].Checked)
	sameInstant(t, first.StartedAt, runs[1].StartedAt)

	limited, err := s.GetReconciliationRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-2", limited[0].ID)
}

// =============================================================================
// PRODUCTS, OBJECTIVES, TASKS
// =============================================================================

func newObjective(id, productID, weekID string) objective.Objective {
	now := time.Now()
	return objective.Objective{
		ID:        id,
		ProductID: productID,
		WeekID:    weekID,
		Title:     "objective " + id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTask(id, objectiveID string) objective.Task {
	now := time.Now()
	return objective.Task{ID: id, ObjectiveID: objectiveID, Title: "task " + id, CreatedAt: now, UpdatedAt: now}
}

func testProducts(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, objective.Product{ID: "p2", Name: "Search", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateProduct(ctx, objective.Product{ID: "p1", Name: "Checkout", CreatedAt: time.Now()}))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Checkout", p.Name)

	all, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "p2", all[0].ID)
	assert.Equal(t, "p1", all[1].ID)

	_, err = s.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, objective.ErrProductNotFound)
}

func testObjectives(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, objective.Product{ID: "p1", Name: "Checkout", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateProduct(ctx, objective.Product{ID: "p2", Name: "Search", CreatedAt: time.Now()}))

	o1 := newObjective("o1", "p1", "week-2025-3-3")
	o1.IsUrgent = true
	o1.Category = objective.UrgentImportant
	o1.Description = "card payments"
	require.NoError(t, s.CreateObjective(ctx, o1))
	require.NoError(t, s.CreateObjective(ctx, newObjective("o2", "p2", "week-2025-3-3")))
	require.NoError(t, s.CreateObjective(ctx, newObjective("o3", "p1", "week-2025-3-10")))
	require.NoError(t, s.CreateObjective(ctx, newObjective("o4", "p1", "week-2025-3-3")))

	// product and week both filter, creation order is kept
	got, err := s.GetObjectives(ctx, "p1", "week-2025-3-3")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].ID)
	assert.Equal(t, "o4", got[1].ID)
	assert.True(t, got[0].IsUrgent)
	assert.Equal(t, objective.UrgentImportant, got[0].Category)
	assert.Equal(t, "card payments", got[0].Description)

	progress := 67
	require.NoError(t, s.UpdateObjective(ctx, "o1", objective.ObjectivePatch{Progress: &progress}))
	o, err := s.GetObjective(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 67, o.Progress)
	assert.Equal(t, "objective o1", o.Title)

	_, err = s.GetObjective(ctx, "missing")
	assert.ErrorIs(t, err, objective.ErrObjectiveNotFound)
	err = s.UpdateObjective(ctx, "missing", objective.ObjectivePatch{Progress: &progress})
	assert.ErrorIs(t, err, objective.ErrObjectiveNotFound)
}

func testTasks(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, objective.Product{ID: "p1", Name: "Checkout", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateObjective(ctx, newObjective("o1", "p1", "week-2025-3-3")))
	require.NoError(t, s.CreateObjective(ctx, newObjective("o2", "p1", "week-2025-3-3")))
	for _, id := range []string{"t3", "t1", "t2"} {
		require.NoError(t, s.CreateTask(ctx, newTask(id, "o1")))
	}
	require.NoError(t, s.CreateTask(ctx, newTask("other", "o2")))

	tasks, err := s.GetTasksForObjective(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "t3", tasks[0].ID)
	assert.Equal(t, "t1", tasks[1].ID)
	assert.Equal(t, "t2", tasks[2].ID)

	done := true
	require.NoError(t, s.UpdateTask(ctx, "t1", objective.TaskPatch{Completed: &done}))
	task, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, task.Completed)
	assert.Equal(t, "task t1", task.Title)

	empty, err := s.GetTasksForObjective(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, objective.ErrTaskNotFound)
	assert.ErrorIs(t, s.UpdateTask(ctx, "missing", objective.TaskPatch{Completed: &done}), objective.ErrTaskNotFound)
}

func testReset(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateWeekRange(ctx, canonical(2025, time.March, 3)))
	require.NoError(t, s.CreateProduct(ctx, objective.Product{ID: "p1", Name: "Checkout", CreatedAt: time.Now()}))
	require.NoError(t, s.SaveReconciliationRun(ctx, week.Run{ID: "run-1", StartedAt: time.Now(), FinishedAt: time.Now()}))

	require.NoError(t, s.Reset(ctx))

	weeks, err := s.GetWeekRanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, weeks)
	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
	runs, err := s.GetReconciliationRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

// =============================================================================
// END TO END
// =============================================================================

func testReconcilePass(t *testing.T, s Store) {
	// GIVEN: a padded legacy id and a record starting mid-week
	ctx := context.Background()
	legacy := week.Record{ID: "week-2025-03-03", StartDate: day(2025, time.March, 3), EndDate: day(2025, time.March, 9), Label: "legacy"}
	midWeek := week.Record{ID: "week-2025-3-10", StartDate: day(2025, time.March, 12), EndDate: day(2025, time.March, 16)}
	require.NoError(t, s.PutWeekRange(ctx, legacy))
	require.NoError(t, s.PutWeekRange(ctx, midWeek))
	rc := week.NewReconciler(s, week.WithSeedDate(time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)))

	// WHEN
	report, err := rc.ReconcileWeekRanges(ctx)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Corrected)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Failed)

	all, err := s.GetWeekRanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"week-2025-3-3", "week-2025-3-10", "week-2025-3-17"}, ids(all))
	for _, r := range all {
		_, drifted := week.ComputeCorrection(r)
		assert.False(t, drifted, r.ID)
	}

	// AND: a second pass writes nothing
	again, err := rc.ReconcileWeekRanges(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func testReconcileKeepsDSTWeekCanonical(t *testing.T, s Store) {
	// GIVEN: a configured zone, other than the process zone, whose clocks
	// move forward on Sunday 30 March 2025
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	ctx := context.Background()
	rc := week.NewReconciler(s,
		week.WithSeedDate(time.Date(2025, time.March, 26, 12, 0, 0, 0, paris)),
		week.WithLocation(paris),
	)

	// WHEN: the pass creates the seed week and then checks it
	report, err := rc.ReconcileWeekRanges(ctx)

	// THEN: the fresh record is already canonical
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Corrected)
	assert.Equal(t, 0, report.Failed)

	got, err := s.GetWeekRangeByID(ctx, "week-2025-3-24")
	require.NoError(t, err)
	assert.True(t, got.StartDate.Equal(time.Date(2025, time.March, 24, 0, 0, 0, 0, paris)), got.StartDate)
	assert.True(t, got.EndDate.Equal(time.Date(2025, time.March, 30, 23, 59, 59, int(999*time.Millisecond), paris)), got.EndDate)
	_, drifted := week.ComputeCorrectionIn(got, paris)
	assert.False(t, drifted)

	// AND: later passes leave it alone
	again, err := rc.ReconcileWeekRanges(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
	assert.Equal(t, 0, again.Failed)
}
