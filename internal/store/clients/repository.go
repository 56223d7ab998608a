package clients

import (
	"context"

	"github.com/abrahampo1/cryptogest-sub001/internal/models"
)

// Repository describes CRUD operations for Client rows, backed by the
// tenant's unlocked database.
type Repository interface {
	// CreateOrUpdate inserts a new client or updates an existing one by ID.
	CreateOrUpdate(ctx context.Context, c *models.Client) error

	// GetAll returns all clients ordered by name.
	GetAll(ctx context.Context) ([]models.Client, error)

	// GetByID returns a client by its identifier.
	GetByID(ctx context.Context, id string) (*models.Client, error)

	// DeleteByID removes a client.
	DeleteByID(ctx context.Context, id string) error
}
