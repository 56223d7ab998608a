package models

import "time"

// Invoice statuses.
const (
	InvoiceStatusDraft  = "draft"
	InvoiceStatusIssued = "issued"
	InvoiceStatusPaid   = "paid"
)

// Invoice is an issued or draft invoice, with its lines. TotalCents is
// denormalized from the lines at write time.
type Invoice struct {
	ID         string
	ClientID   string
	Number     string
	IssueDate  time.Time
	Status     string
	TotalCents int64
	Lines      []InvoiceLine
}

// InvoiceLine is one concept billed on an invoice.
type InvoiceLine struct {
	ID             string
	InvoiceID      string
	Concept        string
	Quantity       float64
	UnitPriceCents int64
}
