// Package redis stores planner data as JSON documents in Redis.
//
// Every record lives under its own key (weekplan:week:{id},
// weekplan:objective:{id}, ...). Sorted sets scored by a creation counter
// keep list order stable. Week renames run in a WATCH/MULTI transaction that
// moves the record, its order entry and its objectives together.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/weekplan/objective"
	"github.com/warp/weekplan/week"
)

const (
	// KeyPrefix starts every key written by the store.
	KeyPrefix = "weekplan:"

	weekKeyPrefix      = KeyPrefix + "week:"
	productKeyPrefix   = KeyPrefix + "product:"
	objectiveKeyPrefix = KeyPrefix + "objective:"
	taskKeyPrefix      = KeyPrefix + "task:"

	weekOrderKey    = KeyPrefix + "weeks"
	productOrderKey = KeyPrefix + "products"
	runsKey         = KeyPrefix + "runs"
	seqKey          = KeyPrefix + "seq"

	// weekObjectivesPrefix + weekID indexes the objectives of a week.
	weekObjectivesPrefix = KeyPrefix + "week-objectives:"
	// objectiveTasksPrefix + objectiveID indexes the tasks of an objective.
	objectiveTasksPrefix = KeyPrefix + "objective-tasks:"

	// DefaultURL is used when no URL is configured.
	DefaultURL = "redis://localhost:6379/0"

	maxRuns       = 500
	maxTxAttempts = 5
)

// Store implements week.Store, week.RunLog and objective.Store on Redis.
type Store struct {
	rdb *redis.Client
}

// New connects to the Redis server at url and checks it answers.
func New(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		url = DefaultURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Reset deletes every key written by the store.
func (s *Store) Reset(ctx context.Context) error {
	keys, err := s.scanKeys(ctx, KeyPrefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type weekDoc struct {
	ID        string    `json:"id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWeekDoc(r week.Record) weekDoc {
	return weekDoc(r)
}

func (d weekDoc) record() week.Record {
	return week.Record(d)
}

type productDoc struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type objectiveDoc struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	WeekID      string    `json:"week_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Progress    int       `json:"progress"`
	IsUrgent    bool      `json:"is_urgent"`
	IsImportant bool      `json:"is_important"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toObjectiveDoc(o objective.Objective) objectiveDoc {
	return objectiveDoc{
		ID:          o.ID,
		ProductID:   o.ProductID,
		WeekID:      o.WeekID,
		Title:       o.Title,
		Description: o.Description,
		Progress:    o.Progress,
		IsUrgent:    o.IsUrgent,
		IsImportant: o.IsImportant,
		Category:    string(o.Category),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func (d objectiveDoc) objective() objective.Objective {
	return objective.Objective{
		ID:          d.ID,
		ProductID:   d.ProductID,
		WeekID:      d.WeekID,
		Title:       d.Title,
		Description: d.Description,
		Progress:    d.Progress,
		IsUrgent:    d.IsUrgent,
		IsImportant: d.IsImportant,
		Category:    objective.Category(d.Category),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type taskDoc struct {
	ID          string    `json:"id"`
	ObjectiveID string    `json:"objective_id"`
	Title       string    `json:"title"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type runDoc struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	SeedWeekID string    `json:"seed_week_id,omitempty"`
	Checked    int       `json:"checked"`
	Corrected  int       `json:"corrected"`
	Created    int       `json:"created"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// =============================================================================
// WEEK RANGES (week.Store)
// =============================================================================

// GetWeekRanges returns every week range in creation order.
func (s *Store) GetWeekRanges(ctx context.Context) ([]week.Record, error) {
	docs, err := loadOrdered[weekDoc](ctx, s.rdb, weekOrderKey, weekKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load week ranges: %w", err)
	}
	records := make([]week.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record())
	}
	return records, nil
}

// GetWeekRangeByID returns a week range by id.
func (s *Store) GetWeekRangeByID(ctx context.Context, id string) (week.Record, error) {
	var d weekDoc
	if err := s.getJSON(ctx, s.rdb, weekKeyPrefix+id, &d); err != nil {
		if errors.Is(err, redis.Nil) {
			return week.Record{}, week.ErrWeekRangeNotFound
		}
		return week.Record{}, err
	}
	return d.record(), nil
}

// CreateWeekRange stores a new week range unless the id is taken.
func (s *Store) CreateWeekRange(ctx context.Context, r week.Record) error {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	data, err := json.Marshal(toWeekDoc(r))
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, weekKeyPrefix+r.ID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create week range: %w", err)
	}
	if !ok {
		return week.ErrWeekRangeExists
	}
	return s.index(ctx, weekOrderKey, r.ID)
}

// PutWeekRange stores r as-is, replacing any record with the same id.
// Used to seed drifted or legacy records.
func (s *Store) PutWeekRange(ctx context.Context, r week.Record) error {
	if err := s.setJSON(ctx, weekKeyPrefix+r.ID, toWeekDoc(r)); err != nil {
		return err
	}
	exists, err := s.rdb.ZScore(ctx, weekOrderKey, r.ID).Result()
	if err == nil && exists > 0 {
		return nil
	}
	return s.index(ctx, weekOrderKey, r.ID)
}

// UpdateWeekRange applies patch in one MULTI/EXEC. A rename also moves the
// order entry and every objective of the week.
func (s *Store) UpdateWeekRange(ctx context.Context, id string, patch week.Patch) error {
	oldKey := weekKeyPrefix + id
	watched := []string{oldKey, weekObjectivesPrefix + id}
	newID := id
	if patch.ID != nil {
		newID = *patch.ID
	}
	if newID != id {
		watched = append(watched, weekKeyPrefix+newID, weekObjectivesPrefix+newID)
	}

	txf := func(tx *redis.Tx) error {
		var d weekDoc
		if err := s.getJSON(ctx, tx, oldKey, &d); err != nil {
			if errors.Is(err, redis.Nil) {
				return week.ErrWeekRangeNotFound
			}
			return err
		}
		updated := patch.Apply(d.record())
		updated.UpdatedAt = time.Now()
		data, err := json.Marshal(toWeekDoc(updated))
		if err != nil {
			return err
		}

		if newID == id {
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, oldKey, data, 0)
				return nil
			})
			return err
		}

		taken, err := tx.Exists(ctx, weekKeyPrefix+newID).Result()
		if err != nil {
			return err
		}
		if taken > 0 {
			return week.ErrWeekRangeExists
		}
		score, err := tx.ZScore(ctx, weekOrderKey, id).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		moved, err := s.renameObjectives(ctx, tx, id, newID)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, oldKey)
			pipe.Set(ctx, weekKeyPrefix+newID, data, 0)
			pipe.ZRem(ctx, weekOrderKey, id)
			pipe.ZAdd(ctx, weekOrderKey, redis.Z{Score: score, Member: newID})
			for key, doc := range moved {
				pipe.Set(ctx, key, doc, 0)
			}
			if len(moved) > 0 {
				pipe.Rename(ctx, weekObjectivesPrefix+id, weekObjectivesPrefix+newID)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, watched...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("failed to update week range %s: %w", id, redis.TxFailedErr)
}

// renameObjectives returns the rewritten documents of every objective
// indexed under oldID, keyed by their Redis key.
func (s *Store) renameObjectives(ctx context.Context, tx *redis.Tx, oldID, newID string) (map[string][]byte, error) {
	ids, err := tx.ZRange(ctx, weekObjectivesPrefix+oldID, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	moved := make(map[string][]byte, len(ids))
	for _, oid := range ids {
		var d objectiveDoc
		if err := s.getJSON(ctx, tx, objectiveKeyPrefix+oid, &d); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		d.WeekID = newID
		data, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		moved[objectiveKeyPrefix+oid] = data
	}
	return moved, nil
}

// =============================================================================
// RECONCILIATION RUNS (week.RunLog)
// =============================================================================

// SaveReconciliationRun prepends a run and trims the history.
func (s *Store) SaveReconciliationRun(ctx context.Context, run week.Run) error {
	data, err := json.Marshal(runDoc(run))
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, runsKey, data)
		pipe.LTrim(ctx, runsKey, 0, maxRuns-1)
		return nil
	})
	return err
}

// GetReconciliationRuns returns the newest runs first.
func (s *Store) GetReconciliationRuns(ctx context.Context, limit int) ([]week.Run, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	values, err := s.rdb.LRange(ctx, runsKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	runs := make([]week.Run, 0, len(values))
	for _, v := range values {
		var d runDoc
		if err := json.Unmarshal([]byte(v), &d); err != nil {
			continue
		}
		runs = append(runs, week.Run(d))
	}
	return runs, nil
}

// =============================================================================
// PRODUCTS (objective.Store)
// =============================================================================

// CreateProduct stores a product.
func (s *Store) CreateProduct(ctx context.Context, p objective.Product) error {
	if err := s.setJSON(ctx, productKeyPrefix+p.ID, productDoc(p)); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return s.index(ctx, productOrderKey, p.ID)
}

// GetProduct returns a product by id.
func (s *Store) GetProduct(ctx context.Context, id string) (objective.Product, error) {
	var d productDoc
	if err := s.getJSON(ctx, s.rdb, productKeyPrefix+id, &d); err != nil {
		if errors.Is(err, redis.Nil) {
			return objective.Product{}, objective.ErrProductNotFound
		}
		return objective.Product{}, err
	}
	return objective.Product(d), nil
}

// ListProducts returns all products in creation order.
func (s *Store) ListProducts(ctx context.Context) ([]objective.Product, error) {
	docs, err := loadOrdered[productDoc](ctx, s.rdb, productOrderKey, productKeyPrefix)
	if err != nil {
		return nil, err
	}
	products := make([]objective.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, objective.Product(d))
	}
	return products, nil
}

// =============================================================================
// OBJECTIVES (objective.Store)
// =============================================================================

// GetObjectives returns a product's objectives for one week.
func (s *Store) GetObjectives(ctx context.Context, productID, weekID string) ([]objective.Objective, error) {
	docs, err := loadOrdered[objectiveDoc](ctx, s.rdb, weekObjectivesPrefix+weekID, objectiveKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load objectives: %w", err)
	}
	var result []objective.Objective
	for _, d := range docs {
		if d.ProductID == productID {
			result = append(result, d.objective())
		}
	}
	return result, nil
}

// GetObjective returns an objective by id, without tasks.
func (s *Store) GetObjective(ctx context.Context, id string) (objective.Objective, error) {
	var d objectiveDoc
	if err := s.getJSON(ctx, s.rdb, objectiveKeyPrefix+id, &d); err != nil {
		if errors.Is(err, redis.Nil) {
			return objective.Objective{}, objective.ErrObjectiveNotFound
		}
		return objective.Objective{}, err
	}
	return d.objective(), nil
}

// CreateObjective stores an objective and indexes it under its week.
func (s *Store) CreateObjective(ctx context.Context, o objective.Objective) error {
	if err := s.setJSON(ctx, objectiveKeyPrefix+o.ID, toObjectiveDoc(o)); err != nil {
		return fmt.Errorf("failed to create objective: %w", err)
	}
	return s.index(ctx, weekObjectivesPrefix+o.WeekID, o.ID)
}

// UpdateObjective applies a patch.
func (s *Store) UpdateObjective(ctx context.Context, id string, patch objective.ObjectivePatch) error {
	key := objectiveKeyPrefix + id
	return s.update(ctx, key, func(tx *redis.Tx) ([]byte, error) {
		var d objectiveDoc
		if err := s.getJSON(ctx, tx, key, &d); err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, objective.ErrObjectiveNotFound
			}
			return nil, err
		}
		o := patch.Apply(d.objective())
		o.UpdatedAt = time.Now()
		return json.Marshal(toObjectiveDoc(o))
	})
}

// =============================================================================
// TASKS (objective.Store)
// =============================================================================

// GetTasksForObjective returns an objective's tasks in creation order.
func (s *Store) GetTasksForObjective(ctx context.Context, objectiveID string) ([]objective.Task, error) {
	docs, err := loadOrdered[taskDoc](ctx, s.rdb, objectiveTasksPrefix+objectiveID, taskKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	tasks := make([]objective.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, objective.Task(d))
	}
	return tasks, nil
}

// GetTask returns a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (objective.Task, error) {
	var d taskDoc
	if err := s.getJSON(ctx, s.rdb, taskKeyPrefix+id, &d); err != nil {
		if errors.Is(err, redis.Nil) {
			return objective.Task{}, objective.ErrTaskNotFound
		}
		return objective.Task{}, err
	}
	return objective.Task(d), nil
}

// CreateTask stores a task and indexes it under its objective.
func (s *Store) CreateTask(ctx context.Context, t objective.Task) error {
	if err := s.setJSON(ctx, taskKeyPrefix+t.ID, taskDoc(t)); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return s.index(ctx, objectiveTasksPrefix+t.ObjectiveID, t.ID)
}

// UpdateTask applies a patch.
func (s *Store) UpdateTask(ctx context.Context, id string, patch objective.TaskPatch) error {
	key := taskKeyPrefix + id
	return s.update(ctx, key, func(tx *redis.Tx) ([]byte, error) {
		var d taskDoc
		if err := s.getJSON(ctx, tx, key, &d); err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, objective.ErrTaskNotFound
			}
			return nil, err
		}
		t := patch.Apply(objective.Task(d))
		t.UpdatedAt = time.Now()
		return json.Marshal(taskDoc(t))
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// update rewrites one document under WATCH so concurrent writers retry.
func (s *Store) update(ctx context.Context, key string, rewrite func(tx *redis.Tx) ([]byte, error)) error {
	txf := func(tx *redis.Tx) error {
		data, err := rewrite(tx)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxTxAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("failed to update %s: %w", key, redis.TxFailedErr)
}

// index appends member to an ordered set, scored by the global counter.
func (s *Store) index(ctx context.Context, setKey, member string) error {
	seq, err := s.rdb.Incr(ctx, seqKey).Result()
	if err != nil {
		return err
	}
	return s.rdb.ZAdd(ctx, setKey, redis.Z{Score: float64(seq), Member: member}).Err()
}

// loadOrdered reads every document indexed in setKey, in score order.
// Members whose document is gone are skipped.
func loadOrdered[T any](ctx context.Context, rdb *redis.Client, setKey, docPrefix string) ([]T, error) {
	ids, err := rdb.ZRange(ctx, setKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docPrefix + id
	}
	values, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	docs := make([]T, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue
		}
		str, ok := val.(string)
		if !ok {
			continue
		}
		var doc T
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// getter is the part of redis.Client and redis.Tx that getJSON needs.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) getJSON(ctx context.Context, c getter, key string, out any) error {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, 0).Err()
}

// scanKeys scans for all keys matching a pattern.
func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		var batch []string
		var err error
		batch, cursor, err = s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return keys, err
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
