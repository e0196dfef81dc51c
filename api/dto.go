/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types in week/
  and objective/ carry no JSON tags; everything the client sees is shaped
  here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  Week boundaries are RFC3339 with milliseconds so the 23:59:59.999 end
  survives. Calendar dates (query parameters, seed fixtures) are YYYY-MM-DD.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/weekplan/objective"
	"github.com/warp/weekplan/week"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// =============================================================================
// WEEKS
// =============================================================================

// WeekDTO represents a stored week range.
type WeekDTO struct {
	ID         string `json:"id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Label      string `json:"label"`
	ShareToken string `json:"share_token"`
}

func toWeekDTO(r week.Record) WeekDTO {
	return WeekDTO{
		ID:         r.ID,
		StartDate:  r.StartDate.Format(timestampLayout),
		EndDate:    r.EndDate.Format(timestampLayout),
		Label:      r.Label,
		ShareToken: week.ShareToken(r),
	}
}

func toWeekDTOs(records []week.Record) []WeekDTO {
	dtos := make([]WeekDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, toWeekDTO(r))
	}
	return dtos
}

// SharedWeekDTO is the answer to a shared-plan link.
type SharedWeekDTO struct {
	Token    string  `json:"token"`
	Week     WeekDTO `json:"week"`
	Fallback bool    `json:"fallback"`
	Created  bool    `json:"created"`
}

// ReconcileReportDTO summarises a reconciliation pass.
type ReconcileReportDTO struct {
	RunID      string   `json:"run_id"`
	SeedWeekID string   `json:"seed_week_id,omitempty"`
	Checked    int      `json:"checked"`
	Corrected  int      `json:"corrected"`
	Created    int      `json:"created"`
	Unchanged  int      `json:"unchanged"`
	Failed     int      `json:"failed"`
	Failures   []string `json:"failures,omitempty"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at"`
}

func toReportDTO(runID string, r week.Report) ReconcileReportDTO {
	dto := ReconcileReportDTO{
		RunID:      runID,
		SeedWeekID: r.SeedWeekID,
		Checked:    r.Checked,
		Corrected:  r.Corrected,
		Created:    r.Created,
		Unchanged:  r.Unchanged,
		Failed:     r.Failed,
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		FinishedAt: r.FinishedAt.Format(time.RFC3339),
	}
	for _, err := range r.Failures {
		dto.Failures = append(dto.Failures, err.Error())
	}
	return dto
}

// RunDTO is one entry of the reconciliation history.
type RunDTO struct {
	ID         string `json:"id"`
	Trigger    string `json:"trigger"`
	SeedWeekID string `json:"seed_week_id,omitempty"`
	Checked    int    `json:"checked"`
	Corrected  int    `json:"corrected"`
	Created    int    `json:"created"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

func toRunDTO(r week.Run) RunDTO {
	return RunDTO{
		ID:         r.ID,
		Trigger:    r.Trigger,
		SeedWeekID: r.SeedWeekID,
		Checked:    r.Checked,
		Corrected:  r.Corrected,
		Created:    r.Created,
		Failed:     r.Failed,
		Error:      r.Error,
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		FinishedAt: r.FinishedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PRODUCTS, OBJECTIVES, TASKS
// =============================================================================

// ProductDTO represents a product.
type ProductDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateProductRequest is the request to create a product.
type CreateProductRequest struct {
	Name string `json:"name"`
}

func toProductDTO(p objective.Product) ProductDTO {
	dto := ProductDTO{ID: p.ID, Name: p.Name}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// TaskDTO represents a task.
type TaskDTO struct {
	ID          string `json:"id"`
	ObjectiveID string `json:"objective_id"`
	Title       string `json:"title"`
	Completed   bool   `json:"completed"`
}

// ObjectiveDTO represents an objective with its tasks and derived values.
type ObjectiveDTO struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	WeekID      string    `json:"week_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsUrgent    bool      `json:"is_urgent"`
	IsImportant bool      `json:"is_important"`
	Category    string    `json:"category"`
	Progress    int       `json:"progress"`
	Tasks       []TaskDTO `json:"tasks"`
}

func toObjectiveDTO(o objective.Objective) ObjectiveDTO {
	tasks := make([]TaskDTO, 0, len(o.Tasks))
	for _, t := range o.Tasks {
		tasks = append(tasks, TaskDTO{
			ID:          t.ID,
			ObjectiveID: t.ObjectiveID,
			Title:       t.Title,
			Completed:   t.Completed,
		})
	}
	return ObjectiveDTO{
		ID:          o.ID,
		ProductID:   o.ProductID,
		WeekID:      o.WeekID,
		Title:       o.Title,
		Description: o.Description,
		IsUrgent:    o.IsUrgent,
		IsImportant: o.IsImportant,
		Category:    string(o.Category),
		Progress:    o.Progress,
		Tasks:       tasks,
	}
}

// CreateObjectiveRequest is the request to create an objective.
type CreateObjectiveRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsUrgent    bool   `json:"is_urgent"`
	IsImportant bool   `json:"is_important"`
	// Category optionally overrides the urgency flags.
	Category string `json:"category,omitempty"`
}

// CreateTaskRequest is the request to add a task.
type CreateTaskRequest struct {
	Title string `json:"title"`
}

// UpdateTaskRequest sets a task's completion explicitly.
type UpdateTaskRequest struct {
	Completed *bool `json:"completed"`
}

// GroupDTO is one Eisenhower quadrant of a plan.
type GroupDTO struct {
	Category   string         `json:"category"`
	Objectives []ObjectiveDTO `json:"objectives"`
}

// PlanDTO is a product's week.
type PlanDTO struct {
	ProductID string     `json:"product_id"`
	Week      WeekDTO    `json:"week"`
	Progress  int        `json:"progress"`
	Groups    []GroupDTO `json:"groups"`
}

func toPlanDTO(p objective.Plan) PlanDTO {
	groups := make([]GroupDTO, 0, len(p.Groups))
	for _, g := range p.Groups {
		objs := make([]ObjectiveDTO, 0, len(g.Objectives))
		for _, o := range g.Objectives {
			objs = append(objs, toObjectiveDTO(o))
		}
		groups = append(groups, GroupDTO{Category: string(g.Category), Objectives: objs})
	}
	return PlanDTO{
		ProductID: p.ProductID,
		Week:      toWeekDTO(p.Week),
		Progress:  p.Progress,
		Groups:    groups,
	}
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO describes a seed scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
