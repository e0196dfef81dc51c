// Package memory provides an in-memory store for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/weekplan/objective"
	"github.com/warp/weekplan/week"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements week.Store, week.RunLog and objective.Store.
// Every write holds the lock for its whole duration, so each record update
// is atomic.
type Memory struct {
	mu sync.RWMutex

	weeks     map[string]week.Record
	weekOrder []string
	runs      []week.Run

	products   map[string]objective.Product
	objectives map[string]objective.Objective
	tasks      map[string]objective.Task
	seq        map[string]int // creation order of objectives and tasks
	next       int

	// FailUpdates makes UpdateWeekRange fail for the listed ids. Tests only.
	FailUpdates map[string]error
}

// New creates an empty store.
func New() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.weeks = make(map[string]week.Record)
	m.weekOrder = nil
	m.runs = nil
	m.products = make(map[string]objective.Product)
	m.objectives = make(map[string]objective.Objective)
	m.tasks = make(map[string]objective.Task)
	m.seq = make(map[string]int)
	m.next = 0
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

// =============================================================================
// WEEK RANGES (week.Store)
// =============================================================================

func (m *Memory) GetWeekRanges(_ context.Context) ([]week.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]week.Record, 0, len(m.weekOrder))
	for _, id := range m.weekOrder {
		result = append(result, m.weeks[id])
	}
	return result, nil
}

func (m *Memory) GetWeekRangeByID(_ context.Context, id string) (week.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.weeks[id]
	if !ok {
		return week.Record{}, week.ErrWeekRangeNotFound
	}
	return r, nil
}

func (m *Memory) CreateWeekRange(_ context.Context, r week.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.weeks[r.ID]; ok {
		return week.ErrWeekRangeExists
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	m.weeks[r.ID] = r
	m.weekOrder = append(m.weekOrder, r.ID)
	return nil
}

// PutWeekRange stores r as-is, replacing any record with the same id.
// Used to seed drifted or legacy records.
func (m *Memory) PutWeekRange(_ context.Context, r week.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.weeks[r.ID]; !ok {
		m.weekOrder = append(m.weekOrder, r.ID)
	}
	m.weeks[r.ID] = r
	return nil
}

// UpdateWeekRange applies patch under the write lock. A rename moves the
// week's objectives to the new id in the same step.
func (m *Memory) UpdateWeekRange(_ context.Context, id string, patch week.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailUpdates[id]; ok {
		return err
	}
	r, ok := m.weeks[id]
	if !ok {
		return week.ErrWeekRangeNotFound
	}
	updated := patch.Apply(r)
	updated.UpdatedAt = time.Now()

	if updated.ID != id {
		if _, taken := m.weeks[updated.ID]; taken {
			return week.ErrWeekRangeExists
		}
		delete(m.weeks, id)
		for oid, o := range m.objectives {
			if o.WeekID == id {
				o.WeekID = updated.ID
				m.objectives[oid] = o
			}
		}
		for i, existing := range m.weekOrder {
			if existing == id {
				m.weekOrder[i] = updated.ID
				break
			}
		}
	}
	m.weeks[updated.ID] = updated
	return nil
}

// =============================================================================
// RECONCILIATION RUNS (week.RunLog)
// =============================================================================

func (m *Memory) SaveReconciliationRun(_ context.Context, run week.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// GetReconciliationRuns returns the newest runs first.
func (m *Memory) GetReconciliationRuns(_ context.Context, limit int) ([]week.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]week.Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		result = append(result, m.runs[i])
	}
	return result, nil
}

// =============================================================================
// PRODUCTS, OBJECTIVES, TASKS (objective.Store)
// =============================================================================

func (m *Memory) CreateProduct(_ context.Context, p objective.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	m.seq[p.ID] = m.bump()
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id string) (objective.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return objective.Product{}, objective.ErrProductNotFound
	}
	return p, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]objective.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]objective.Product, 0, len(m.products))
	for _, p := range m.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return m.seq[result[i].ID] < m.seq[result[j].ID] })
	return result, nil
}

func (m *Memory) GetObjectives(_ context.Context, productID, weekID string) ([]objective.Objective, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []objective.Objective
	for _, o := range m.objectives {
		if o.ProductID == productID && o.WeekID == weekID {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return m.seq[result[i].ID] < m.seq[result[j].ID] })
	return result, nil
}

func (m *Memory) GetObjective(_ context.Context, id string) (objective.Objective, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.objectives[id]
	if !ok {
		return objective.Objective{}, objective.ErrObjectiveNotFound
	}
	return o, nil
}

func (m *Memory) CreateObjective(_ context.Context, o objective.Objective) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.Tasks = nil
	m.objectives[o.ID] = o
	m.seq[o.ID] = m.bump()
	return nil
}

func (m *Memory) UpdateObjective(_ context.Context, id string, patch objective.ObjectivePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.objectives[id]
	if !ok {
		return objective.ErrObjectiveNotFound
	}
	o = patch.Apply(o)
	o.UpdatedAt = time.Now()
	m.objectives[id] = o
	return nil
}

func (m *Memory) GetTasksForObjective(_ context.Context, objectiveID string) ([]objective.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []objective.Task{}
	for _, t := range m.tasks {
		if t.ObjectiveID == objectiveID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return m.seq[result[i].ID] < m.seq[result[j].ID] })
	return result, nil
}

func (m *Memory) GetTask(_ context.Context, id string) (objective.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return objective.Task{}, objective.ErrTaskNotFound
	}
	return t, nil
}

func (m *Memory) CreateTask(_ context.Context, t objective.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	m.seq[t.ID] = m.bump()
	return nil
}

func (m *Memory) UpdateTask(_ context.Context, id string, patch objective.TaskPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return objective.ErrTaskNotFound
	}
	t = patch.Apply(t)
	t.UpdatedAt = time.Now()
	m.tasks[id] = t
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Memory) bump() int {
	m.next++
	return m.next
}
