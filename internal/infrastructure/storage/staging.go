package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/pkg/utils"
)

// LocalScheme prefixes URIs of captured documents not yet uploaded
const LocalScheme = "local://"

// StagingArea holds captured documents on the device until they are
// uploaded to the store of record
type StagingArea struct {
	files  port.FileStorage
	logger *zap.Logger
}

// NewStagingArea creates a staging area backed by files
func NewStagingArea(files port.FileStorage, logger *zap.Logger) *StagingArea {
	return &StagingArea{
		files:  files,
		logger: logger,
	}
}

// Stage keeps a captured document and returns its local:// URI. Empty
// content means the capture was cancelled.
func (a *StagingArea) Stage(ctx context.Context, fileName string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", entity.ErrCaptureCancelled
	}

	name := utils.SanitizeFileName(fileName)
	if name == "" {
		name = "capture" + extensionFor(http.DetectContentType(content))
	}
	key := uuid.NewString() + "_" + name

	if err := a.files.Save(ctx, key, content); err != nil {
		a.logger.Error("Failed to stage capture", zap.String("file_name", fileName), zap.Error(err))
		return "", fmt.Errorf("stage capture: %w", err)
	}

	uri := LocalScheme + key
	a.logger.Info("Capture staged", zap.String("uri", uri), zap.Int("size", len(content)))
	return uri, nil
}

// Resolve reads back a staged document
func (a *StagingArea) Resolve(ctx context.Context, localURI string) (*entity.AttachmentFile, error) {
	if !a.Owns(localURI) {
		return nil, fmt.Errorf("not a local uri: %q", localURI)
	}
	key := strings.TrimPrefix(localURI, LocalScheme)

	content, err := a.files.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	return &entity.AttachmentFile{
		Content:  content,
		FileName: originalName(key),
		MimeType: DetectMimeType(key, content),
		Size:     int64(len(content)),
	}, nil
}

// Owns reports whether uri points into the staging area
func (a *StagingArea) Owns(uri string) bool {
	return strings.HasPrefix(uri, LocalScheme) && len(uri) > len(LocalScheme)
}

// Discard removes a staged document
func (a *StagingArea) Discard(ctx context.Context, localURI string) error {
	if !a.Owns(localURI) {
		return fmt.Errorf("not a local uri: %q", localURI)
	}
	return a.files.Delete(ctx, strings.TrimPrefix(localURI, LocalScheme))
}

// Sweep removes staged documents last modified before cutoff. Documents for
// which keep returns true are left in place. It returns how many were removed.
func (a *StagingArea) Sweep(ctx context.Context, cutoff time.Time, keep func(uri string) bool) (int, error) {
	entries, err := os.ReadDir(a.files.GetFullPath(""))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("list staging area: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() {
			continue
		}

		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		uri := LocalScheme + e.Name()
		if keep != nil && keep(uri) {
			continue
		}

		if err := a.files.Delete(ctx, e.Name()); err != nil {
			a.logger.Warn("Failed to remove stale capture", zap.String("uri", uri), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		a.logger.Info("Stale captures removed", zap.Int("count", removed))
	}
	return removed, nil
}

// DetectMimeType prefers the content signature and falls back to the file
// extension
func DetectMimeType(name string, content []byte) string {
	sniffed := http.DetectContentType(content)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	if sniffed != "application/octet-stream" && sniffed != "text/plain" {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if i := strings.Index(byExt, ";"); i >= 0 {
			byExt = byExt[:i]
		}
		return byExt
	}
	return sniffed
}

func originalName(key string) string {
	if _, rest, ok := strings.Cut(key, "_"); ok && rest != "" {
		return rest
	}
	return key
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "application/pdf"):
		return ".pdf"
	case strings.HasPrefix(mimeType, "image/png"):
		return ".png"
	case strings.HasPrefix(mimeType, "image/jpeg"):
		return ".jpg"
	default:
		return ".bin"
	}
}

var _ port.CaptureProvider = (*StagingArea)(nil)
