package domain

import "github.com/shopspring/decimal"

// Bill is the rendered invoice for a call's orders, one per call.
type Bill struct {
	ID            int64           `db:"id" json:"id"`
	CallID        int64           `db:"call_id" json:"call_id"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	GSTPercentage decimal.Decimal `db:"gst_percentage" json:"gst_percentage"`
	Content       string          `db:"content" json:"content"`
	CreatedAt     string          `db:"created_at" json:"created_at"`
}
