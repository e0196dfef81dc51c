/*
scenarios.go - Seed scenario loaders for demos and manual testing

PURPOSE:
  Populates the store with products, objectives, tasks and (possibly
  drifted) week ranges described by YAML fixtures embedded from
  scenarios/*.yaml.

AVAILABLE SCENARIOS:
  drifted-weeks: Legacy week records for the reconciler to correct
  fresh-week:    Current week with objectives in all four quadrants
  shared-plan:   Consecutive weeks for shared-link resolution

FIXTURE FORMAT:
  weeks:      Stored as-is, so they may break the week rules on purpose.
              start/end are YYYY-MM-DD; a missing end means the canonical
              Sunday end of start's week.
  products:   Created through the Board like API calls.
    objectives[].week: "current", "next", "previous", a YYYY-MM-DD date
              (week created on demand) or a stored week id.

HOW SCENARIOS WORK:
  1. Reset store (clear all data)
  2. Store the fixture's week ranges verbatim
  3. Create products, objectives and tasks
  4. Mark completed tasks (progress is recomputed on each change)

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "drifted-weeks"}

NOTE:
  Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Week and board endpoints
  - cmd/server: serve --scenario
*/
package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/warp/weekplan/objective"
	"github.com/warp/weekplan/week"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios/*.yaml
var scenarioFS embed.FS

// ErrUnknownScenario is returned for a scenario id with no fixture.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Weeks       []scenarioWeek    `yaml:"weeks"`
	Products    []scenarioProduct `yaml:"products"`
}

type scenarioWeek struct {
	ID    string `yaml:"id"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Label string `yaml:"label"`
}

type scenarioProduct struct {
	Name       string              `yaml:"name"`
	Objectives []scenarioObjective `yaml:"objectives"`
}

type scenarioObjective struct {
	Week        string         `yaml:"week"`
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Urgent      bool           `yaml:"urgent"`
	Important   bool           `yaml:"important"`
	Category    string         `yaml:"category"`
	Tasks       []scenarioTask `yaml:"tasks"`
}

type scenarioTask struct {
	Title string `yaml:"title"`
	Done  bool   `yaml:"done"`
}

// loadScenarioFiles parses every embedded fixture, ordered by file name.
func loadScenarioFiles() ([]scenario, error) {
	entries, err := scenarioFS.ReadDir("scenarios")
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var result []scenario
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := scenarioFS.ReadFile(path.Join("scenarios", e.Name()))
		if err != nil {
			return nil, err
		}
		var s scenario
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		if s.ID == "" {
			s.ID = strings.TrimSuffix(e.Name(), ".yaml")
		}
		result = append(result, s)
	}
	return result, nil
}

func findScenario(id string) (scenario, error) {
	all, err := loadScenarioFiles()
	if err != nil {
		return scenario{}, err
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return scenario{}, fmt.Errorf("%w: %s", ErrUnknownScenario, id)
}

func (s scenario) dto() ScenarioDTO {
	return ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description}
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	all, err := loadScenarioFiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read scenarios", err)
		return
	}
	dtos := make([]ScenarioDTO, 0, len(all))
	for _, s := range all {
		dtos = append(dtos, s.dto())
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, err := findScenario(current)
	if err != nil {
		writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
		return
	}
	writeJSON(w, http.StatusOK, s.dto())
}

// LoadScenario resets the store and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, err := h.ApplyScenario(r.Context(), req.ScenarioID)
	if err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeError(w, http.StatusNotFound, "Scenario not found", err)
			return
		}
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": s,
	})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// LOADER
// =============================================================================

// ApplyScenario resets the store and loads the scenario with id.
func (h *Handler) ApplyScenario(ctx context.Context, id string) (ScenarioDTO, error) {
	s, err := findScenario(id)
	if err != nil {
		return ScenarioDTO{}, err
	}

	if err := h.Store.Reset(ctx); err != nil {
		return ScenarioDTO{}, fmt.Errorf("reset store: %w", err)
	}

	loc := h.Weeks.Location()
	for _, sw := range s.Weeks {
		rec, err := sw.record(loc)
		if err != nil {
			return ScenarioDTO{}, fmt.Errorf("scenario %s: %w", s.ID, err)
		}
		if err := h.Store.PutWeekRange(ctx, rec); err != nil {
			return ScenarioDTO{}, fmt.Errorf("scenario %s: store week %s: %w", s.ID, rec.ID, err)
		}
	}

	for _, sp := range s.Products {
		p, err := h.Board.CreateProduct(ctx, sp.Name)
		if err != nil {
			return ScenarioDTO{}, fmt.Errorf("scenario %s: %w", s.ID, err)
		}
		for _, so := range sp.Objectives {
			if err := h.loadObjective(ctx, p.ID, so); err != nil {
				return ScenarioDTO{}, fmt.Errorf("scenario %s: objective %q: %w", s.ID, so.Title, err)
			}
		}
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Log.Info().
		Str("scenario", s.ID).
		Int("weeks", len(s.Weeks)).
		Int("products", len(s.Products)).
		Msg("scenario loaded")
	return s.dto(), nil
}

func (h *Handler) loadObjective(ctx context.Context, productID string, so scenarioObjective) error {
	weekID, err := h.scenarioWeekID(ctx, so.Week)
	if err != nil {
		return err
	}

	o, err := h.Board.CreateObjective(ctx, objective.NewObjective{
		ProductID:   productID,
		WeekID:      weekID,
		Title:       so.Title,
		Description: so.Description,
		IsUrgent:    so.Urgent,
		IsImportant: so.Important,
		Category:    objective.Category(so.Category),
	})
	if err != nil {
		return err
	}

	for _, st := range so.Tasks {
		updated, err := h.Board.AddTask(ctx, o.ID, st.Title)
		if err != nil {
			return err
		}
		if !st.Done {
			continue
		}
		added := updated.Tasks[len(updated.Tasks)-1]
		if _, err := h.Board.SetTaskCompleted(ctx, added.ID, true); err != nil {
			return err
		}
	}
	return nil
}

// scenarioWeekID resolves an objective's week reference to a stored id.
func (h *Handler) scenarioWeekID(ctx context.Context, ref string) (string, error) {
	loc := h.Weeks.Location()
	var date time.Time
	switch ref {
	case "", "current":
		date = week.Now().In(loc)
	case "next":
		date = week.Now().In(loc).AddDate(0, 0, 7)
	case "previous":
		date = week.Now().In(loc).AddDate(0, 0, -7)
	default:
		if strings.HasPrefix(ref, week.IDPrefix) {
			rec, err := h.Weeks.ByID(ctx, ref)
			if err != nil {
				return "", err
			}
			return rec.ID, nil
		}
		d, err := time.ParseInLocation(dateLayout, ref, loc)
		if err != nil {
			return "", &week.InvalidDateError{Input: ref}
		}
		date = d
	}

	rec, err := h.Weeks.ForDate(ctx, date)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (sw scenarioWeek) record(loc *time.Location) (week.Record, error) {
	start, err := time.ParseInLocation(dateLayout, sw.Start, loc)
	if err != nil {
		return week.Record{}, &week.InvalidDateError{Input: sw.Start}
	}
	canonical := week.MustOf(start)

	end := canonical.End
	if sw.End != "" {
		if end, err = time.ParseInLocation(dateLayout, sw.End, loc); err != nil {
			return week.Record{}, &week.InvalidDateError{Input: sw.End}
		}
	}

	rec := week.Record{
		ID:        sw.ID,
		StartDate: start,
		EndDate:   end,
		Label:     sw.Label,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if rec.ID == "" {
		rec.ID = canonical.ID
	}
	if rec.Label == "" {
		rec.Label = canonical.Label()
	}
	return rec, nil
}
