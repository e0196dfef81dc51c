package objective

import "context"

// Store persists products, objectives and tasks.
// Lookups by id return the matching ErrXxxNotFound when absent.
type Store interface {
	CreateProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	// GetObjectives returns the objectives of a product for one week,
	// without tasks, in creation order.
	GetObjectives(ctx context.Context, productID, weekID string) ([]Objective, error)
	GetObjective(ctx context.Context, id string) (Objective, error)
	CreateObjective(ctx context.Context, o Objective) error
	UpdateObjective(ctx context.Context, id string, patch ObjectivePatch) error

	// GetTasksForObjective returns tasks in creation order.
	GetTasksForObjective(ctx context.Context, objectiveID string) ([]Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	CreateTask(ctx context.Context, t Task) error
	UpdateTask(ctx context.Context, id string, patch TaskPatch) error
}
