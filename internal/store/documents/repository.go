package documents

import (
	"context"

	"github.com/abrahampo1/cryptogest-sub001/internal/models"
)

// Repository describes operations for Document rows (attachment metadata).
// The ciphertext blobs themselves live on disk under opaque names; this is
// the only mapping back to original filenames.
type Repository interface {
	// Create inserts a new document row.
	Create(ctx context.Context, d *models.Document) error

	// GetAll returns all documents ordered by creation time.
	GetAll(ctx context.Context) ([]models.Document, error)

	// GetByID returns a document by its identifier.
	GetByID(ctx context.Context, id string) (*models.Document, error)

	// DeleteByID removes a document row.
	DeleteByID(ctx context.Context, id string) error
}
