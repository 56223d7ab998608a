package invoices

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abrahampo1/cryptogest-sub001/internal/common"
	"github.com/abrahampo1/cryptogest-sub001/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:invoices_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE invoices (
  id TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  number TEXT NOT NULL UNIQUE,
  issue_date TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  total_cents INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE invoice_lines (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  concept TEXT NOT NULL,
  quantity REAL NOT NULL DEFAULT 1,
  unit_price_cents INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)
	return db
}

func sampleInvoice() *models.Invoice {
	return &models.Invoice{
		ID:        "inv1",
		ClientID:  "c1",
		Number:    "2026-0001",
		IssueDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:    models.InvoiceStatusIssued,
		Lines: []models.InvoiceLine{
			{ID: "l1", InvoiceID: "inv1", Concept: "Consultoría", Quantity: 10, UnitPriceCents: 5000},
			{ID: "l2", InvoiceID: "inv1", Concept: "Desplazamiento", Quantity: 1, UnitPriceCents: 2500},
		},
	}
}

func TestCreateOrUpdate_ComputesTotalAndStoresLines(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	inv := sampleInvoice()
	require.NoError(t, r.CreateOrUpdate(ctx, inv))
	assert.Equal(t, int64(52500), inv.TotalCents)

	got, err := r.GetByID(ctx, "inv1")
	require.NoError(t, err)
	assert.Equal(t, "2026-0001", got.Number)
	assert.Equal(t, int64(52500), got.TotalCents)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Consultoría", got.Lines[0].Concept)
}

func TestCreateOrUpdate_ReplacesLines(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	inv := sampleInvoice()
	require.NoError(t, r.CreateOrUpdate(ctx, inv))

	inv.Lines = []models.InvoiceLine{
		{ID: "l3", InvoiceID: "inv1", Concept: "Única línea", Quantity: 2, UnitPriceCents: 1000},
	}
	require.NoError(t, r.CreateOrUpdate(ctx, inv))

	got, err := r.GetByID(ctx, "inv1")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Única línea", got.Lines[0].Concept)
	assert.Equal(t, int64(2000), got.TotalCents)
}

func TestGetAll_HeadersOnly(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	a := sampleInvoice()
	require.NoError(t, r.CreateOrUpdate(ctx, a))

	b := sampleInvoice()
	b.ID = "inv2"
	b.Number = "2026-0002"
	b.Lines = nil
	require.NoError(t, r.CreateOrUpdate(ctx, b))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2026-0001", all[0].Number)
	assert.Equal(t, "2026-0002", all[1].Number)
	assert.Empty(t, all[0].Lines)
}

func TestGetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteByID_RemovesLinesToo(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.CreateOrUpdate(ctx, sampleInvoice()))
	require.NoError(t, r.DeleteByID(ctx, "inv1"))

	_, err := r.GetByID(ctx, "inv1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM invoice_lines`).Scan(&n))
	assert.Equal(t, 0, n)

	assert.ErrorIs(t, r.DeleteByID(ctx, "inv1"), common.ErrNotFound)
}
