/*
Package objective holds weekly objectives, their tasks and the values derived
from them.

KEY CONCEPTS:
  - Objective: a goal for one product in one week, with a task list
  - Task:      a checklist item owned by one objective
  - Category:  Eisenhower quadrant (urgent/important) of an objective
  - Progress:  percentage of completed tasks, always derived

DERIVED VALUES:
  Progress and Category are recomputed from the task list and the urgency
  flags on every read after a mutation. The Progress stored with an
  objective is a cache for list views, never a source of truth.

SEE ALSO:
  - category.go: CategoryOf, GroupByCategory
  - progress.go: Progress, PlanProgress
  - board.go:    Store-backed operations (toggle, create, plan view)
*/
package objective

import "time"

// Product owns objectives.
type Product struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Objective is a weekly goal.
type Objective struct {
	ID          string
	ProductID   string
	WeekID      string
	Title       string
	Description string
	Tasks       []Task
	Progress    int

	IsUrgent    bool
	IsImportant bool
	// Category, when set to a known value, overrides the urgency flags.
	Category Category

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Task is a checklist item of an objective.
type Task struct {
	ID          string
	ObjectiveID string
	Title       string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskPatch is a partial task update. Nil fields are left untouched.
type TaskPatch struct {
	Title     *string
	Completed *bool
}

// Apply returns t with the patch applied.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// ObjectivePatch is a partial objective update.
type ObjectivePatch struct {
	Title       *string
	Description *string
	Progress    *int
	IsUrgent    *bool
	IsImportant *bool
	Category    *Category
}

// Apply returns o with the patch applied.
func (p ObjectivePatch) Apply(o Objective) Objective {
	if p.Title != nil {
		o.Title = *p.Title
	}
	if p.Description != nil {
		o.Description = *p.Description
	}
	if p.Progress != nil {
		o.Progress = *p.Progress
	}
	if p.IsUrgent != nil {
		o.IsUrgent = *p.IsUrgent
	}
	if p.IsImportant != nil {
		o.IsImportant = *p.IsImportant
	}
	if p.Category != nil {
		o.Category = *p.Category
	}
	return o
}

// Recompute returns o with Progress derived from its Tasks and Category
// resolved from its flags.
func Recompute(o Objective) Objective {
	o.Progress = Progress(o.Tasks)
	o.Category = CategoryOf(o)
	return o
}
