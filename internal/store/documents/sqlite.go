package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/dbx"
	"github.com/abrahampo1/cryptogest-sub001/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a document row.
func (r *SQLiteRepository) Create(ctx context.Context, d *models.Document) error {
	query := `INSERT INTO documents (id, opaque_name, original_name, content_type, size_bytes, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.OpaqueName, d.OriginalName, d.ContentType, d.SizeBytes, d.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetAll lists all documents ordered by creation time.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Document, error) {
	query := `SELECT id, opaque_name, original_name, content_type, size_bytes, created_at
			FROM documents ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	var result []models.Document
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID returns a document row or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, opaque_name, original_name, content_type, size_bytes, created_at FROM documents WHERE id = ?`, id)

	d, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: document %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return d, nil
}

// DeleteByID removes a document row. It expects exactly one row to be affected.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("%w: document %s", common.ErrNotFound, id)
	}
	return nil
}

func scanDocument(scan func(dest ...any) error) (*models.Document, error) {
	d := &models.Document{}
	var created string
	if err := scan(&d.ID, &d.OpaqueName, &d.OriginalName, &d.ContentType, &d.SizeBytes, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	d.CreatedAt = t
	return d, nil
}
