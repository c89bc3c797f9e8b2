package port

import (
	"context"
	"io"

	"github.com/shopspring/decimal"

	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/domain/event"
)

// ExtractedFields holds invoice fields read from an attachment. Empty
// strings mean the field could not be read.
type ExtractedFields struct {
	VendorName    string `json:"vendor_name"`
	InvoiceNumber string `json:"invoice_number"`
	Amount        string `json:"amount"`
	TaxAmount     string `json:"tax_amount"`
	IssueDate     string `json:"issue_date"`
	DueDate       string `json:"due_date"`
	Category      string `json:"category"`
}

// InvoiceExtractor reads invoice fields from a scanned document
type InvoiceExtractor interface {
	Extract(ctx context.Context, file *entity.AttachmentFile) (*ExtractedFields, error)
}

// EventPublisher announces ledger changes without waiting for subscribers
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event)
}

// Notifier relays ledger events to people outside the app
type Notifier interface {
	HandleEvent(ctx context.Context, evt *event.Event) error
}

// LedgerTotals are the derived aggregates of a ledger snapshot
type LedgerTotals struct {
	Outstanding decimal.Decimal `json:"outstanding"`
	Paid        decimal.Decimal `json:"paid"`
	Currency    string          `json:"currency"`
	Count       int             `json:"count"`
}

// LedgerExporter writes a ledger snapshot in a document format
type LedgerExporter interface {
	Export(ctx context.Context, w io.Writer, invoices []*entity.Invoice, totals LedgerTotals) error
	ContentType() string
}
