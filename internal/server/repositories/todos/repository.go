package todos

import (
	"context"

	"github.com/dmitrijs2005/todoapi/internal/server/models"
)

// Repository stores todos. Every method is scoped to the owning user:
// rows belonging to someone else behave as if they did not exist.
type Repository interface {
	Create(ctx context.Context, todo *models.Todo) (*models.Todo, error)
	Get(ctx context.Context, userID, id string) (*models.Todo, error)
	List(ctx context.Context, userID string, f models.TodoFilter) ([]models.Todo, error)
	Count(ctx context.Context, userID string, f models.TodoFilter) (int, error)
	Update(ctx context.Context, userID, id string, upd models.TodoUpdate) (*models.Todo, error)
	Delete(ctx context.Context, userID, id string) error
}
