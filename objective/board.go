/*
board.go - Store-backed objective operations

PURPOSE:
  The Board is what handlers call. It loads objectives with their tasks,
  recomputes derived values, and keeps the stored progress in step with
  task changes.

TASK TOGGLE:
  1. Read the task
  2. Write the flipped completion flag (failure is returned, nothing else
     is written)
  3. Re-read the objective's tasks, so progress comes from the
     post-toggle list and never from a stale snapshot
  4. Store the new progress and return the recomputed objective

SEE ALSO:
  - api/handlers.go: HTTP surface
  - week/service.go: Week records referenced by objectives
*/
package objective

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/weekplan/week"
)

// WeekLookup resolves week ids to stored records.
type WeekLookup interface {
	ByID(ctx context.Context, id string) (week.Record, error)
}

// Board coordinates objective reads and writes.
type Board struct {
	store Store
	weeks WeekLookup
	now   func() time.Time
}

// NewBoard creates a Board.
func NewBoard(store Store, weeks WeekLookup) *Board {
	return &Board{store: store, weeks: weeks, now: time.Now}
}

// =============================================================================
// PLAN VIEW
// =============================================================================

// Plan is one product's week: objectives grouped by quadrant.
type Plan struct {
	ProductID string
	Week      week.Record
	Groups    []Group
	Progress  int
}

// WeekPlan loads the objectives of a product for a week, with tasks,
// recomputed progress and category.
func (b *Board) WeekPlan(ctx context.Context, productID, weekID string) (Plan, error) {
	if _, err := b.store.GetProduct(ctx, productID); err != nil {
		return Plan{}, err
	}
	rec, err := b.weeks.ByID(ctx, weekID)
	if err != nil {
		if week.IsNotFound(err) {
			return Plan{}, fmt.Errorf("%w: %s", ErrWeekNotFound, weekID)
		}
		return Plan{}, err
	}

	objectives, err := b.store.GetObjectives(ctx, productID, weekID)
	if err != nil {
		return Plan{}, fmt.Errorf("get objectives: %w", err)
	}
	for i := range objectives {
		tasks, err := b.store.GetTasksForObjective(ctx, objectives[i].ID)
		if err != nil {
			return Plan{}, fmt.Errorf("get tasks for %s: %w", objectives[i].ID, err)
		}
		objectives[i].Tasks = tasks
		objectives[i] = Recompute(objectives[i])
	}

	return Plan{
		ProductID: productID,
		Week:      rec,
		Groups:    GroupByCategory(objectives),
		Progress:  PlanProgress(objectives),
	}, nil
}

// Objective loads one objective with its tasks and derived values.
func (b *Board) Objective(ctx context.Context, id string) (Objective, error) {
	o, err := b.store.GetObjective(ctx, id)
	if err != nil {
		return Objective{}, err
	}
	tasks, err := b.store.GetTasksForObjective(ctx, id)
	if err != nil {
		return Objective{}, fmt.Errorf("get tasks for %s: %w", id, err)
	}
	o.Tasks = tasks
	return Recompute(o), nil
}

// =============================================================================
// WRITES
// =============================================================================

// CreateProduct stores a new product.
func (b *Board) CreateProduct(ctx context.Context, name string) (Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, &ValidationError{Field: "name", Message: "is required"}
	}
	p := Product{ID: uuid.NewString(), Name: name, CreatedAt: b.now()}
	if err := b.store.CreateProduct(ctx, p); err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Products lists every product.
func (b *Board) Products(ctx context.Context) ([]Product, error) {
	return b.store.ListProducts(ctx)
}

// NewObjective is the input to CreateObjective.
type NewObjective struct {
	ProductID   string
	WeekID      string
	Title       string
	Description string
	IsUrgent    bool
	IsImportant bool
	Category    Category
}

// CreateObjective stores a new objective with no tasks.
func (b *Board) CreateObjective(ctx context.Context, in NewObjective) (Objective, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Objective{}, &ValidationError{Field: "title", Message: "is required"}
	}
	if in.Category != "" && !in.Category.Valid() {
		return Objective{}, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", in.Category)}
	}
	if _, err := b.store.GetProduct(ctx, in.ProductID); err != nil {
		return Objective{}, err
	}
	if _, err := b.weeks.ByID(ctx, in.WeekID); err != nil {
		if week.IsNotFound(err) {
			return Objective{}, fmt.Errorf("%w: %s", ErrWeekNotFound, in.WeekID)
		}
		return Objective{}, err
	}

	now := b.now()
	o := Objective{
		ID:          uuid.NewString(),
		ProductID:   in.ProductID,
		WeekID:      in.WeekID,
		Title:       title,
		Description: in.Description,
		IsUrgent:    in.IsUrgent,
		IsImportant: in.IsImportant,
		Category:    in.Category,
		Tasks:       []Task{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.store.CreateObjective(ctx, o); err != nil {
		return Objective{}, fmt.Errorf("create objective: %w", err)
	}
	return Recompute(o), nil
}

// AddTask appends an incomplete task and returns the recomputed objective.
func (b *Board) AddTask(ctx context.Context, objectiveID, title string) (Objective, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Objective{}, &ValidationError{Field: "title", Message: "is required"}
	}
	if _, err := b.store.GetObjective(ctx, objectiveID); err != nil {
		return Objective{}, err
	}

	now := b.now()
	t := Task{
		ID:          uuid.NewString(),
		ObjectiveID: objectiveID,
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := b.store.CreateTask(ctx, t); err != nil {
		return Objective{}, fmt.Errorf("create task: %w", err)
	}
	return b.syncProgress(ctx, objectiveID)
}

// ToggleTask flips a task's completion and returns its recomputed objective.
func (b *Board) ToggleTask(ctx context.Context, taskID string) (Objective, error) {
	t, err := b.store.GetTask(ctx, taskID)
	if err != nil {
		return Objective{}, err
	}
	return b.SetTaskCompleted(ctx, taskID, !t.Completed)
}

// SetTaskCompleted sets a task's completion and returns its recomputed
// objective. If the task write fails nothing else is written.
func (b *Board) SetTaskCompleted(ctx context.Context, taskID string, completed bool) (Objective, error) {
	t, err := b.store.GetTask(ctx, taskID)
	if err != nil {
		return Objective{}, err
	}
	if err := b.store.UpdateTask(ctx, taskID, TaskPatch{Completed: &completed}); err != nil {
		return Objective{}, fmt.Errorf("update task %s: %w", taskID, err)
	}
	return b.syncProgress(ctx, t.ObjectiveID)
}

// syncProgress re-reads the objective's tasks and stores the derived progress.
func (b *Board) syncProgress(ctx context.Context, objectiveID string) (Objective, error) {
	o, err := b.Objective(ctx, objectiveID)
	if err != nil {
		return Objective{}, err
	}
	progress := o.Progress
	if err := b.store.UpdateObjective(ctx, objectiveID, ObjectivePatch{Progress: &progress}); err != nil {
		return Objective{}, fmt.Errorf("update progress of %s: %w", objectiveID, err)
	}
	return o, nil
}
