package invoices

import (
	"context"

	"github.com/abrahampo1/cryptogest-sub001/internal/models"
)

// Repository describes operations for Invoice rows and their lines.
type Repository interface {
	// CreateOrUpdate upserts an invoice and replaces its lines in one
	// transaction. TotalCents is recomputed from the lines.
	CreateOrUpdate(ctx context.Context, inv *models.Invoice) error

	// GetAll returns all invoice headers (no lines) ordered by number.
	GetAll(ctx context.Context) ([]models.Invoice, error)

	// GetByID returns an invoice with its lines.
	GetByID(ctx context.Context, id string) (*models.Invoice, error)

	// DeleteByID removes an invoice and its lines.
	DeleteByID(ctx context.Context, id string) error
}
