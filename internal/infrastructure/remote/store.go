// Package remote implements the store of record for invoices on top of the
// relational repository and a blob store.
package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
)

// ErrNotUploaded is returned when a record still points at a local document
var ErrNotUploaded = errors.New("attachment has not been uploaded")

// Store implements port.InvoiceStorage
type Store struct {
	capture     port.CaptureProvider
	blobs       port.BlobStore
	thumbnails  port.ThumbnailRenderer
	invoices    port.InvoiceRepository
	attachments port.AttachmentRepository
	tx          port.TransactionManager
	newID       func() entity.Identity
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithIDs overrides how confirmed identities are assigned
func WithIDs(newID func() entity.Identity) Option {
	return func(s *Store) { s.newID = newID }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a new Store. thumbnails may be nil, in which case no
// previews are produced.
func NewStore(
	capture port.CaptureProvider,
	blobs port.BlobStore,
	thumbnails port.ThumbnailRenderer,
	invoices port.InvoiceRepository,
	attachments port.AttachmentRepository,
	tx port.TransactionManager,
	logger *zap.Logger,
	opts ...Option,
) *Store {
	s := &Store{
		capture:     capture,
		blobs:       blobs,
		thumbnails:  thumbnails,
		invoices:    invoices,
		attachments: attachments,
		tx:          tx,
		newID:       entity.NewConfirmedID,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadAttachment copies a staged document into the blob store, renders
// its thumbnail and records both. A URI that already names a stored
// attachment is returned as is.
func (s *Store) UploadAttachment(ctx context.Context, localURI string) (*entity.AttachmentRef, error) {
	if !s.capture.Owns(localURI) {
		existing, err := s.attachments.GetByURI(ctx, localURI)
		if err != nil {
			return nil, &entity.UploadError{URI: localURI, Cause: err}
		}
		if existing == nil {
			return nil, &entity.UploadError{URI: localURI, Cause: fmt.Errorf("unknown attachment")}
		}
		return &entity.AttachmentRef{FileURI: existing.FileURI, ThumbnailURI: existing.ThumbnailURI}, nil
	}

	file, err := s.capture.Resolve(ctx, localURI)
	if err != nil {
		return nil, &entity.UploadError{URI: localURI, Cause: err}
	}

	sum := sha256.Sum256(file.Content)
	blobID := uuid.NewString()

	fileURI, err := s.blobs.Put(ctx, path.Join("attachments", blobID, file.FileName), file.Content, file.MimeType)
	if err != nil {
		s.logger.Error("Failed to store attachment", zap.String("local_uri", localURI), zap.Error(err))
		return nil, &entity.UploadError{URI: localURI, Cause: err}
	}

	thumbURI := s.storeThumbnail(ctx, blobID, file)

	att := &entity.StoredAttachment{
		FileURI:      fileURI,
		ThumbnailURI: thumbURI,
		FileName:     file.FileName,
		MimeType:     file.MimeType,
		Size:         file.Size,
		Checksum:     hex.EncodeToString(sum[:]),
		CreatedAt:    s.now(),
	}
	if err := s.attachments.Create(ctx, att); err != nil {
		s.discardBlobs(ctx, fileURI, thumbURI)
		return nil, &entity.UploadError{URI: localURI, Cause: err}
	}

	s.logger.Info("Attachment uploaded",
		zap.String("local_uri", localURI),
		zap.String("file_uri", fileURI),
		zap.String("thumbnail_uri", thumbURI),
		zap.Int64("size", file.Size))

	return &entity.AttachmentRef{FileURI: fileURI, ThumbnailURI: thumbURI}, nil
}

// CreateInvoice stores a new record under a freshly assigned identity. A
// record submitted under a confirmed identity replaces that stored record:
// the old row is kept but marked superseded in the same transaction, so it
// is no longer listed.
func (s *Store) CreateInvoice(ctx context.Context, invoice *entity.Invoice) (*entity.Invoice, error) {
	if err := s.checkStorable(invoice); err != nil {
		return nil, &entity.RemoteError{Op: "create", Cause: err}
	}

	saved := invoice.Clone()
	saved.ID = s.newID()
	now := s.now()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.invoices.Create(ctx, saved); err != nil {
			return err
		}
		if !invoice.ID.IsConfirmed() {
			return nil
		}
		if err := s.invoices.Supersede(ctx, invoice.ID.Value(), saved.ID.Value()); err != nil {
			return fmt.Errorf("supersede %s: %w", invoice.ID.Value(), err)
		}
		return nil
	})
	if err != nil {
		return nil, &entity.RemoteError{Op: "create", Cause: err}
	}

	s.logger.Info("Invoice created",
		zap.String("id", saved.ID.Value()),
		zap.String("submitted_as", invoice.ID.String()),
		zap.Bool("supersedes", invoice.ID.IsConfirmed()),
		zap.String("vendor", saved.VendorName))
	return saved, nil
}

// UpdateInvoice replaces an existing record, keeping its creation time
func (s *Store) UpdateInvoice(ctx context.Context, invoice *entity.Invoice) (*entity.Invoice, error) {
	if !invoice.ID.IsConfirmed() {
		return nil, &entity.RemoteError{Op: "update", Cause: fmt.Errorf("identity %q is not confirmed", invoice.ID.String())}
	}
	if err := s.checkStorable(invoice); err != nil {
		return nil, &entity.RemoteError{Op: "update", Cause: err}
	}

	saved := invoice.Clone()
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.invoices.GetByID(ctx, invoice.ID.Value())
		if err != nil {
			return err
		}
		saved.CreatedAt = existing.CreatedAt
		saved.UpdatedAt = s.now()
		return s.invoices.Update(ctx, saved)
	})
	if err != nil {
		return nil, &entity.RemoteError{Op: "update", Cause: err}
	}

	s.logger.Info("Invoice updated", zap.String("id", saved.ID.Value()), zap.String("status", string(saved.Status)))
	return saved, nil
}

// ListInvoices returns every stored record, newest first
func (s *Store) ListInvoices(ctx context.Context) ([]*entity.Invoice, error) {
	invoices, err := s.invoices.List(ctx)
	if err != nil {
		return nil, &entity.RemoteError{Op: "list", Cause: err}
	}
	return invoices, nil
}

// OpenAttachment reads a document by URI, whether staged or stored
func (s *Store) OpenAttachment(ctx context.Context, uri string) (*entity.AttachmentFile, error) {
	if s.capture.Owns(uri) {
		return s.capture.Resolve(ctx, uri)
	}

	att, err := s.attachments.GetByURI(ctx, uri)
	if err != nil {
		return nil, err
	}
	if att == nil {
		return nil, fmt.Errorf("unknown attachment %q", uri)
	}

	content, err := s.blobs.Get(ctx, uri)
	if err != nil {
		return nil, err
	}

	file := &entity.AttachmentFile{
		Content:  content,
		FileName: att.FileName,
		MimeType: att.MimeType,
		Size:     int64(len(content)),
	}
	if uri == att.ThumbnailURI {
		file.FileName = "thumbnail.jpg"
		file.MimeType = "image/jpeg"
	}
	return file, nil
}

func (s *Store) checkStorable(invoice *entity.Invoice) error {
	if err := invoice.Validate(); err != nil {
		return err
	}
	if s.capture.Owns(invoice.FileURI) {
		return ErrNotUploaded
	}
	return nil
}

func (s *Store) storeThumbnail(ctx context.Context, blobID string, file *entity.AttachmentFile) string {
	if s.thumbnails == nil {
		return ""
	}

	thumb, err := s.thumbnails.Render(file)
	if err != nil {
		s.logger.Warn("Thumbnail not rendered", zap.String("file_name", file.FileName), zap.Error(err))
		return ""
	}

	uri, err := s.blobs.Put(ctx, path.Join("thumbnails", blobID+".jpg"), thumb, "image/jpeg")
	if err != nil {
		s.logger.Warn("Thumbnail not stored", zap.String("file_name", file.FileName), zap.Error(err))
		return ""
	}
	return uri
}

func (s *Store) discardBlobs(ctx context.Context, uris ...string) {
	for _, uri := range uris {
		if uri == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, uri); err != nil {
			s.logger.Warn("Failed to discard blob", zap.String("uri", uri), zap.Error(err))
		}
	}
}

var _ port.InvoiceStorage = (*Store)(nil)
