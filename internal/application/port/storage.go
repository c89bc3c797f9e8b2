package port

import (
	"context"

	"github.com/garyjia/site-invoices/internal/domain/entity"
)

// InvoiceStorage is the store of record for invoices. Callers treat it as an
// opaque network boundary: every operation either succeeds or fails.
type InvoiceStorage interface {
	// UploadAttachment stores the document behind a local URI and returns its
	// canonical reference. Fails with *entity.UploadError.
	UploadAttachment(ctx context.Context, localURI string) (*entity.AttachmentRef, error)

	// CreateInvoice persists a new record; the store may assign a new
	// identity. A record carrying a confirmed identity replaces that stored
	// record, which is no longer listed. Fails with *entity.RemoteError.
	CreateInvoice(ctx context.Context, invoice *entity.Invoice) (*entity.Invoice, error)

	// UpdateInvoice replaces an existing confirmed record. Fails with
	// *entity.RemoteError, e.g. for an unknown identity.
	UpdateInvoice(ctx context.Context, invoice *entity.Invoice) (*entity.Invoice, error)

	// ListInvoices returns all stored records, newest first.
	ListInvoices(ctx context.Context) ([]*entity.Invoice, error)
}

// CaptureProvider supplies local file handles for scanned or uploaded
// documents.
type CaptureProvider interface {
	// Stage keeps the captured content and returns its local URI. Empty
	// content yields entity.ErrCaptureCancelled.
	Stage(ctx context.Context, fileName string, content []byte) (string, error)

	// Resolve reads back content previously staged under a local URI.
	Resolve(ctx context.Context, localURI string) (*entity.AttachmentFile, error)

	// Owns reports whether the URI refers to staged content.
	Owns(uri string) bool
}

// BlobStore keeps attachment and thumbnail bytes for the store of record
type BlobStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)
	Get(ctx context.Context, uri string) ([]byte, error)
	Delete(ctx context.Context, uri string) error
}

// ThumbnailRenderer produces a small JPEG preview of an attachment
type ThumbnailRenderer interface {
	Render(file *entity.AttachmentFile) ([]byte, error)
}

// FileStorage defines file storage operations
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}
