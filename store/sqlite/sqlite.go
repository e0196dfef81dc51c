/*
Package sqlite provides a SQLite-backed implementation of the planner stores.

PURPOSE:
  Implements week.Store, week.RunLog and objective.Store using SQLite. The
  same SQL runs on PostgreSQL with minor dialect changes.

KEY TABLES:
  week_ranges:         Week records (id = week-Y-M-D, may drift)
  products:            Owners of objectives
  objectives:          Weekly objectives (progress is a derived cache)
  tasks:               Objective checklists
  reconciliation_runs: One row per reconciliation pass

ATOMICITY:
  A week range update is one UPDATE inside one transaction. When the patch
  renames the record, the objectives pointing at the old id move with it in
  the same transaction.

TIME FORMAT:
  Times are stored as RFC3339 with nanoseconds so week ends
  (23:59:59.999) survive a round trip and compare Equal.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WAL mode lets readers proceed while
  a write is in flight.

USAGE:
  store, err := sqlite.New("./data/weekplan.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - week/store.go, objective/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/weekplan/objective"
	"github.com/warp/weekplan/week"
)

const timeLayout = time.RFC3339Nano

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS week_ranges (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_week_ranges_start
		ON week_ranges(start_date);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS objectives (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		week_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		progress INTEGER NOT NULL DEFAULT 0,
		is_urgent BOOLEAN NOT NULL DEFAULT FALSE,
		is_important BOOLEAN NOT NULL DEFAULT FALSE,
		category TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: one product's plan for one week
	CREATE INDEX IF NOT EXISTS idx_objectives_product_week
		ON objectives(product_id, week_id);
	CREATE INDEX IF NOT EXISTS idx_objectives_week
		ON objectives(week_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		objective_id TEXT NOT NULL REFERENCES objectives(id),
		title TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_objective
		ON tasks(objective_id);

	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		trigger TEXT NOT NULL,
		seed_week_id TEXT,
		checked INTEGER NOT NULL DEFAULT 0,
		corrected INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_started
		ON reconciliation_runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all data (development only).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"tasks", "objectives", "products", "week_ranges", "reconciliation_runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// WEEK RANGES (week.Store interface)
// =============================================================================

// GetWeekRanges returns every week range in insertion order.
func (s *Store) GetWeekRanges(ctx context.Context) ([]week.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, start_date, end_date, label, created_at, updated_at
		FROM week_ranges
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query week ranges: %w", err)
	}
	defer rows.Close()

	var records []week.Record
	for rows.Next() {
		r, err := scanWeekRange(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetWeekRangeByID returns a week range by id.
func (s *Store) GetWeekRangeByID(ctx context.Context, id string) (week.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, start_date, end_date, label, created_at, updated_at
		FROM week_ranges WHERE id = ?
	`, id)
	r, err := scanWeekRange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return week.Record{}, week.ErrWeekRangeNotFound
	}
	return r, err
}

// CreateWeekRange inserts a new week range.
func (s *Store) CreateWeekRange(ctx context.Context, r week.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO week_ranges (id, start_date, end_date, label, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, formatTime(r.StartDate), formatTime(r.EndDate), r.Label,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return week.ErrWeekRangeExists
		}
		return fmt.Errorf("failed to create week range: %w", err)
	}
	return nil
}

// PutWeekRange stores r as-is, replacing any record with the same id.
// Used to seed drifted or legacy records.
func (s *Store) PutWeekRange(ctx context.Context, r week.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO week_ranges (id, start_date, end_date, label, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			label = excluded.label,
			updated_at = excluded.updated_at
	`, r.ID, formatTime(r.StartDate), formatTime(r.EndDate), r.Label,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to put week range: %w", err)
	}
	return nil
}

// UpdateWeekRange applies a patch in one transaction.
func (s *Store) UpdateWeekRange(ctx context.Context, id string, patch week.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}
	if patch.ID != nil {
		sets = append(sets, "id = ?")
		args = append(args, *patch.ID)
	}
	if patch.StartDate != nil {
		sets = append(sets, "start_date = ?")
		args = append(args, formatTime(*patch.StartDate))
	}
	if patch.EndDate != nil {
		sets = append(sets, "end_date = ?")
		args = append(args, formatTime(*patch.EndDate))
	}
	if patch.Label != nil {
		sets = append(sets, "label = ?")
		args = append(args, *patch.Label)
	}
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE week_ranges SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return week.ErrWeekRangeExists
		}
		return fmt.Errorf("failed to update week range: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return week.ErrWeekRangeNotFound
	}

	if patch.ID != nil && *patch.ID != id {
		if _, err := tx.ExecContext(ctx, "UPDATE objectives SET week_id = ? WHERE week_id = ?", *patch.ID, id); err != nil {
			return fmt.Errorf("failed to move objectives: %w", err)
		}
	}

	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWeekRange(row scanner) (week.Record, error) {
	var r week.Record
	var start, end, createdAt, updatedAt string
	if err := row.Scan(&r.ID, &start, &end, &r.Label, &createdAt, &updatedAt); err != nil {
		return week.Record{}, err
	}
	var err error
	if r.StartDate, err = parseTime(start); err != nil {
		return week.Record{}, fmt.Errorf("week range %s start_date: %w", r.ID, err)
	}
	if r.EndDate, err = parseTime(end); err != nil {
		return week.Record{}, fmt.Errorf("week range %s end_date: %w", r.ID, err)
	}
	r.CreatedAt, _ = parseTime(createdAt)
	r.UpdatedAt, _ = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// RECONCILIATION RUNS (week.RunLog interface)
// =============================================================================

// SaveReconciliationRun records a reconciliation pass.
func (s *Store) SaveReconciliationRun(ctx context.Context, run week.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reconciliation_runs
		(id, trigger, seed_week_id, checked, corrected, created, failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Trigger, nullString(run.SeedWeekID), run.Checked, run.Corrected, run.Created,
		run.Failed, nullString(run.Error), formatTime(run.StartedAt), formatTime(run.FinishedAt))
	return err
}

// GetReconciliationRuns returns the most recent runs first.
func (s *Store) GetReconciliationRuns(ctx context.Context, limit int) ([]week.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, trigger, seed_week_id, checked, corrected, created, failed, error, started_at, finished_at
		FROM reconciliation_runs
		ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []week.Run
	for rows.Next() {
		var r week.Run
		var seed, errText sql.NullString
		var startedAt, finishedAt string
		if err := rows.Scan(&r.ID, &r.Trigger, &seed, &r.Checked, &r.Corrected, &r.Created,
			&r.Failed, &errText, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		r.SeedWeekID = seed.String
		r.Error = errText.String
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt, _ = parseTime(finishedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// PRODUCTS (objective.Store interface)
// =============================================================================

// CreateProduct inserts a product.
func (s *Store) CreateProduct(ctx context.Context, p objective.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products (id, name, created_at) VALUES (?, ?, ?)",
		p.ID, p.Name, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetProduct returns a product by id.
func (s *Store) GetProduct(ctx context.Context, id string) (objective.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p objective.Product
	var createdAt string
	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM products WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return objective.Product{}, objective.ErrProductNotFound
	}
	if err != nil {
		return objective.Product{}, err
	}
	p.CreatedAt, _ = parseTime(createdAt)
	return p, nil
}

// ListProducts returns all products in insertion order.
func (s *Store) ListProducts(ctx context.Context) ([]objective.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM products ORDER BY rowid ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []objective.Product{}
	for rows.Next() {
		var p objective.Product
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = parseTime(createdAt)
		products = append(products, p)
	}
	return products, rows.Err()
}

// =============================================================================
// OBJECTIVES (objective.Store interface)
// =============================================================================

const objectiveColumns = `id, product_id, week_id, title, description, progress,
	is_urgent, is_important, category, created_at, updated_at`

// GetObjectives returns a product's objectives for one week.
func (s *Store) GetObjectives(ctx context.Context, productID, weekID string) ([]objective.Objective, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+objectiveColumns+" FROM objectives WHERE product_id = ? AND week_id = ? ORDER BY rowid ASC",
		productID, weekID)
	if err != nil {
		return nil, fmt.Errorf("failed to query objectives: %w", err)
	}
	defer rows.Close()

	var result []objective.Objective
	for rows.Next() {
		o, err := scanObjective(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// GetObjective returns an objective by id, without tasks.
func (s *Store) GetObjective(ctx context.Context, id string) (objective.Objective, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, err := scanObjective(s.db.QueryRowContext(ctx,
		"SELECT "+objectiveColumns+" FROM objectives WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return objective.Objective{}, objective.ErrObjectiveNotFound
	}
	return o, err
}

// CreateObjective inserts an objective. Tasks are stored separately.
func (s *Store) CreateObjective(ctx context.Context, o objective.Objective) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objectives (`+objectiveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.ProductID, o.WeekID, o.Title, o.Description, o.Progress,
		o.IsUrgent, o.IsImportant, string(o.Category),
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create objective: %w", err)
	}
	return nil
}

// UpdateObjective applies a patch.
func (s *Store) UpdateObjective(ctx context.Context, id string, patch objective.ObjectivePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Progress != nil {
		sets = append(sets, "progress = ?")
		args = append(args, *patch.Progress)
	}
	if patch.IsUrgent != nil {
		sets = append(sets, "is_urgent = ?")
		args = append(args, *patch.IsUrgent)
	}
	if patch.IsImportant != nil {
		sets = append(sets, "is_important = ?")
		args = append(args, *patch.IsImportant)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*patch.Category))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE objectives SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update objective: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return objective.ErrObjectiveNotFound
	}
	return nil
}

func scanObjective(row scanner) (objective.Objective, error) {
	var o objective.Objective
	var category, createdAt, updatedAt string
	if err := row.Scan(&o.ID, &o.ProductID, &o.WeekID, &o.Title, &o.Description, &o.Progress,
		&o.IsUrgent, &o.IsImportant, &category, &createdAt, &updatedAt); err != nil {
		return objective.Objective{}, err
	}
	o.Category = objective.Category(category)
	o.CreatedAt, _ = parseTime(createdAt)
	o.UpdatedAt, _ = parseTime(updatedAt)
	return o, nil
}

// =============================================================================
// TASKS (objective.Store interface)
// =============================================================================

// GetTasksForObjective returns an objective's tasks in insertion order.
func (s *Store) GetTasksForObjective(ctx context.Context, objectiveID string) ([]objective.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, objective_id, title, completed, created_at, updated_at
		FROM tasks WHERE objective_id = ? ORDER BY rowid ASC
	`, objectiveID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []objective.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask returns a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (objective.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanTask(s.db.QueryRowContext(ctx, `
		SELECT id, objective_id, title, completed, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return objective.Task{}, objective.ErrTaskNotFound
	}
	return t, err
}

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, t objective.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, objective_id, title, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.ObjectiveID, t.Title, t.Completed, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpdateTask applies a patch.
func (s *Store) UpdateTask(ctx context.Context, id string, patch objective.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return objective.ErrTaskNotFound
	}
	return nil
}

func scanTask(row scanner) (objective.Task, error) {
	var t objective.Task
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.ObjectiveID, &t.Title, &t.Completed, &createdAt, &updatedAt); err != nil {
		return objective.Task{}, err
	}
	t.CreatedAt, _ = parseTime(createdAt)
	t.UpdatedAt, _ = parseTime(updatedAt)
	return t, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY") ||
		strings.Contains(err.Error(), "duplicate key"))
}
