/*
scenarios_test.go - Tests for seed scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Week ranges are stored verbatim, drift included
	- Products, objectives and tasks are created
	- Progress matches the completed tasks

The drifted-weeks test doubles as an integration test of reconciliation
against SQLite: objectives must follow their week to its canonical id.
*/
package api

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/weekplan/store/sqlite"
	"github.com/warp/weekplan/week"
)

func setupTestHandler(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return newTestServer(t, store)
}

func productID(t *testing.T, s *testServer, name string) string {
	t.Helper()
	products, err := s.handler.Board.Products(context.Background())
	require.NoError(t, err)
	for _, p := range products {
		if p.Name == name {
			return p.ID
		}
	}
	t.Fatalf("product %q not found", name)
	return ""
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	s := setupTestHandler(t)
	all, err := loadScenarioFiles()
	require.NoError(t, err)
	require.Len(t, all, 3)

	for _, sc := range all {
		t.Run(sc.ID, func(t *testing.T) {
			got, err := s.handler.ApplyScenario(context.Background(), sc.ID)
			require.NoError(t, err)
			assert.Equal(t, sc.ID, got.ID)
			assert.NotEmpty(t, got.Name)
		})
	}
}

func TestScenario_ListAndCurrent(t *testing.T) {
	s := setupTestHandler(t)

	rec := s.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "drifted-weeks", list[0].ID)
	assert.Equal(t, "fresh-week", list[1].ID)
	assert.Equal(t, "shared-plan", list[2].ID)

	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))

	rec = s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "fresh-week"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "fresh-week", decode[ScenarioDTO](t, rec).ID)

	rec = s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenario_Reset(t *testing.T) {
	s := setupTestHandler(t)
	_, err := s.handler.ApplyScenario(context.Background(), "shared-plan")
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/scenarios/reset", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	weeks := decode[[]WeekDTO](t, s.do(t, http.MethodGet, "/api/weeks/all", nil))
	assert.Empty(t, weeks)
	products := decode[[]ProductDTO](t, s.do(t, http.MethodGet, "/api/products", nil))
	assert.Empty(t, products)
	assert.Equal(t, "null", string(bytes.TrimSpace(s.do(t, http.MethodGet, "/api/scenarios/current", nil).Body.Bytes())))
}

func TestScenario_FreshWeek(t *testing.T) {
	// GIVEN
	s := setupTestHandler(t)

	// WHEN
	_, err := s.handler.ApplyScenario(context.Background(), "fresh-week")
	require.NoError(t, err)

	// THEN: one objective per quadrant this week, one next week
	pid := productID(t, s, "Planner App")
	rec := s.do(t, http.MethodGet, "/api/products/"+pid+"/weeks/week-2025-4-14/plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plan := decode[PlanDTO](t, rec)
	for _, g := range plan.Groups {
		assert.Len(t, g.Objectives, 1, g.Category)
	}
	assert.Equal(t, 67, plan.Groups[0].Objectives[0].Progress)
	assert.Equal(t, 50, plan.Groups[1].Objectives[0].Progress)
	// 3 of 6 tasks done
	assert.Equal(t, 50, plan.Progress)

	rec = s.do(t, http.MethodGet, "/api/products/"+pid+"/weeks/week-2025-4-21/plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[PlanDTO](t, rec).Groups[1].Objectives, 1)
}

func TestScenario_SharedPlan(t *testing.T) {
	s := setupTestHandler(t)
	_, err := s.handler.ApplyScenario(context.Background(), "shared-plan")
	require.NoError(t, err)

	// WHEN: a link shared from Wednesday
	rec := s.do(t, http.MethodGet, "/api/weeks/shared/05-03-2025--to--11-03-2025", nil)

	// THEN: it lands on the stored week containing that Wednesday
	require.Equal(t, http.StatusOK, rec.Code)
	shared := decode[SharedWeekDTO](t, rec)
	assert.Equal(t, "week-2025-3-3", shared.Week.ID)
	assert.False(t, shared.Created)

	pid := productID(t, s, "Team Board")
	plan := decode[PlanDTO](t, s.do(t, http.MethodGet, "/api/products/"+pid+"/weeks/"+shared.Week.ID+"/plan", nil))
	assert.Equal(t, 75, plan.Progress)
	assert.Equal(t, 100, plan.Groups[0].Objectives[0].Progress)
}

func TestScenario_DriftedWeeksReconcile(t *testing.T) {
	// GIVEN: legacy week records with objectives attached
	s := setupTestHandler(t)
	_, err := s.handler.ApplyScenario(context.Background(), "drifted-weeks")
	require.NoError(t, err)
	ctx := context.Background()

	legacy, err := s.store.GetWeekRangeByID(ctx, "week-2025-03-03")
	require.NoError(t, err)
	assert.True(t, legacy.EndDate.Equal(time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)))

	// WHEN: a pass runs with the seed inside the fixture
	rc := week.NewReconciler(s.store, week.WithSeedDate(time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)))
	report, err := rc.ReconcileWeekRanges(ctx)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Corrected)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 0, report.Failed)

	weeks := decode[[]WeekDTO](t, s.do(t, http.MethodGet, "/api/weeks/all", nil))
	require.Len(t, weeks, 3)
	assert.Equal(t, "week-2025-3-3", weeks[0].ID)
	assert.Equal(t, "2025-03-09T23:59:59.999Z", weeks[0].EndDate)
	assert.Equal(t, "week-2025-3-10", weeks[1].ID)
	assert.Equal(t, "2025-03-10T00:00:00.000Z", weeks[1].StartDate)

	// AND: the invoice objective followed its week
	pid := productID(t, s, "Legacy Import")
	plan := decode[PlanDTO](t, s.do(t, http.MethodGet, "/api/products/"+pid+"/weeks/week-2025-3-3/plan", nil))
	require.Len(t, plan.Groups[1].Objectives, 1)
	assert.Equal(t, "Migrate invoices", plan.Groups[1].Objectives[0].Title)
	assert.Equal(t, 67, plan.Groups[1].Objectives[0].Progress)
}

func TestScenarioWeek_Record(t *testing.T) {
	sw := scenarioWeek{Start: "2025-03-05"}

	rec, err := sw.record(time.UTC)

	require.NoError(t, err)
	assert.Equal(t, "week-2025-3-3", rec.ID)
	assert.Equal(t, "Mar 3 - Mar 9, 2025", rec.Label)
	// start is kept as given, drift included
	assert.Equal(t, 5, rec.StartDate.Day())
	assert.Equal(t, 9, rec.EndDate.Day())

	_, err = scenarioWeek{Start: "soon"}.record(time.UTC)
	assert.ErrorIs(t, err, week.ErrInvalidDate)
}
