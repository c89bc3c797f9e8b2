package port

import (
	"context"

	"github.com/garyjia/site-invoices/internal/domain/entity"
)

// InvoiceRepository defines persistence operations for stored invoices.
// Identities passed in and returned are always confirmed identities.
type InvoiceRepository interface {
	// Create inserts a new invoice row
	Create(ctx context.Context, invoice *entity.Invoice) error

	// GetByID returns entity.ErrInvoiceNotFound when no row matches
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)

	// List returns current invoices ordered by creation time, newest first.
	// Superseded rows are omitted.
	List(ctx context.Context) ([]*entity.Invoice, error)

	// Update overwrites an existing current row; entity.ErrInvoiceNotFound
	// when absent or superseded
	Update(ctx context.Context, invoice *entity.Invoice) error

	// Supersede records that row id was replaced by replacementID;
	// entity.ErrInvoiceNotFound when no current row matches
	Supersede(ctx context.Context, id, replacementID string) error

	// Delete removes a row; missing rows are not an error
	Delete(ctx context.Context, id string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AttachmentRepository records uploaded documents
type AttachmentRepository interface {
	Create(ctx context.Context, att *entity.StoredAttachment) error

	// GetByURI matches either the file or the thumbnail URI; nil when absent
	GetByURI(ctx context.Context, uri string) (*entity.StoredAttachment, error)
}
