package invoices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/dbx"
	"github.com/abrahampo1/cryptogest-sub001/internal/models"
)

// SQLiteRepository implements Repository over *sql.DB. Unlike the
// single-table repos it needs the full handle, because writing an invoice
// touches two tables inside one transaction.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateOrUpdate upserts the invoice header and replaces all of its lines.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, inv *models.Invoice) error {
	var total int64
	for _, l := range inv.Lines {
		total += int64(math.Round(l.Quantity * float64(l.UnitPriceCents)))
	}
	inv.TotalCents = total

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `INSERT INTO invoices (id, client_id, number, issue_date, status, total_cents)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET client_id = excluded.client_id,
					number = excluded.number,
					issue_date = excluded.issue_date,
					status = excluded.status,
					total_cents = excluded.total_cents
		`
		_, err := tx.ExecContext(ctx, query,
			inv.ID, inv.ClientID, inv.Number, inv.IssueDate.UTC().Format(time.RFC3339), inv.Status, inv.TotalCents)
		if err != nil {
			return fmt.Errorf("failed to upsert invoice: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_lines WHERE invoice_id = ?`, inv.ID); err != nil {
			return fmt.Errorf("failed to clear invoice lines: %w", err)
		}
		for _, l := range inv.Lines {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO invoice_lines (id, invoice_id, concept, quantity, unit_price_cents) VALUES (?, ?, ?, ?, ?)`,
				l.ID, inv.ID, l.Concept, l.Quantity, l.UnitPriceCents)
			if err != nil {
				return fmt.Errorf("failed to insert invoice line: %w", err)
			}
		}
		return nil
	})
}

// GetAll lists invoice headers ordered by number. Lines are not loaded.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Invoice, error) {
	query := `SELECT id, client_id, number, issue_date, status, total_cents FROM invoices ORDER BY number`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select invoices: %w", err)
	}
	defer rows.Close()

	var result []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID returns the invoice with its lines, or common.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, client_id, number, issue_date, status, total_cents FROM invoices WHERE id = ?`, id)

	inv, err := scanInvoice(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice %s", common.ErrNotFound, id)
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, invoice_id, concept, quantity, unit_price_cents FROM invoice_lines WHERE invoice_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l models.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Concept, &l.Quantity, &l.UnitPriceCents); err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return inv, nil
}

// DeleteByID removes the invoice and its lines in one transaction.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_lines WHERE invoice_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete invoice lines: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if ra != 1 {
			return fmt.Errorf("%w: invoice %s", common.ErrNotFound, id)
		}
		return nil
	})
}

func scanInvoice(scan func(dest ...any) error) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var issued string
	if err := scan(&inv.ID, &inv.ClientID, &inv.Number, &issued, &inv.Status, &inv.TotalCents); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, issued)
	if err != nil {
		return nil, fmt.Errorf("parse issue_date: %w", err)
	}
	inv.IssueDate = t
	return inv, nil
}
