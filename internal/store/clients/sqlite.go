package clients

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

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateOrUpdate upserts a client by id. On conflict, mutable columns are updated.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, c *models.Client) error {
	query := `INSERT INTO clients (id, name, nif, email, address, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name,
				nif = excluded.nif,
				email = excluded.email,
				address = excluded.address
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.NIF, c.Email, c.Address, c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert client: %w", err)
	}
	return nil
}

// GetAll lists all clients ordered by name.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Client, error) {
	query := `SELECT id, name, nif, email, address, created_at FROM clients ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select clients: %w", err)
	}
	defer rows.Close()

	var result []models.Client
	for rows.Next() {
		item, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID returns a single client or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT id, name, nif, email, address, created_at FROM clients WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	c, err := scanClient(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: client %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return c, nil
}

// DeleteByID removes a client row. It expects exactly one row to be affected.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("%w: client %s", common.ErrNotFound, id)
	}
	return nil
}

func scanClient(scan func(dest ...any) error) (*models.Client, error) {
	c := &models.Client{}
	var created string
	if err := scan(&c.ID, &c.Name, &c.NIF, &c.Email, &c.Address, &created); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	c.CreatedAt = t
	return c, nil
}
