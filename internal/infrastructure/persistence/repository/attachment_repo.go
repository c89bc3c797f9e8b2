package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/infrastructure/persistence/sqlite"
)

// AttachmentRepository implements port.AttachmentRepository
type AttachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sql.DB, logger *zap.Logger) port.AttachmentRepository {
	return &AttachmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new attachment record
func (r *AttachmentRepository) Create(ctx context.Context, att *entity.StoredAttachment) error {
	query := `
		INSERT INTO attachments (
			file_uri, thumbnail_uri, file_name, mime_type, file_size, checksum, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now()
	}

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		att.FileURI,
		att.ThumbnailURI,
		att.FileName,
		att.MimeType,
		att.Size,
		att.Checksum,
		formatTime(att.CreatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create attachment", zap.String("file_uri", att.FileURI), zap.Error(err))
		return fmt.Errorf("failed to create attachment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	att.ID = id
	return nil
}

// GetByURI retrieves an attachment by its file or thumbnail URI
func (r *AttachmentRepository) GetByURI(ctx context.Context, uri string) (*entity.StoredAttachment, error) {
	query := `
		SELECT id, file_uri, thumbnail_uri, file_name, mime_type, file_size, checksum, created_at
		FROM attachments
		WHERE file_uri = ? OR (thumbnail_uri <> '' AND thumbnail_uri = ?)
		LIMIT 1
	`

	var att entity.StoredAttachment
	var created string
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, uri, uri).Scan(
		&att.ID,
		&att.FileURI,
		&att.ThumbnailURI,
		&att.FileName,
		&att.MimeType,
		&att.Size,
		&att.Checksum,
		&created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get attachment by URI", zap.String("uri", uri), zap.Error(err))
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}

	if att.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("attachment %d: created_at: %w", att.ID, err)
	}
	return &att, nil
}

var _ port.AttachmentRepository = (*AttachmentRepository)(nil)
