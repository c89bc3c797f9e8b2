package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
)

// StoreScheme prefixes URIs of blobs kept by LocalBlobStore
const StoreScheme = "store://"

// LocalBlobStore keeps store-of-record blobs on the local filesystem
type LocalBlobStore struct {
	files  port.FileStorage
	logger *zap.Logger
}

// NewLocalBlobStore creates a blob store backed by files
func NewLocalBlobStore(files port.FileStorage, logger *zap.Logger) *LocalBlobStore {
	return &LocalBlobStore{
		files:  files,
		logger: logger,
	}
}

// Put saves content under key and returns its store:// URI
func (s *LocalBlobStore) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("empty blob key")
	}
	if err := s.files.Save(ctx, key, content); err != nil {
		return "", err
	}

	uri := StoreScheme + key
	s.logger.Debug("Blob stored",
		zap.String("uri", uri),
		zap.String("content_type", contentType),
		zap.Int("size", len(content)))
	return uri, nil
}

// Get reads the blob behind a store:// URI
func (s *LocalBlobStore) Get(ctx context.Context, uri string) ([]byte, error) {
	key, err := s.keyOf(uri)
	if err != nil {
		return nil, err
	}
	return s.files.Read(ctx, key)
}

// Delete removes the blob behind a store:// URI; missing blobs are ignored
func (s *LocalBlobStore) Delete(ctx context.Context, uri string) error {
	key, err := s.keyOf(uri)
	if err != nil {
		return err
	}
	return s.files.Delete(ctx, key)
}

func (s *LocalBlobStore) keyOf(uri string) (string, error) {
	if !strings.HasPrefix(uri, StoreScheme) || len(uri) == len(StoreScheme) {
		return "", fmt.Errorf("not a store uri: %q", uri)
	}
	return strings.TrimPrefix(uri, StoreScheme), nil
}

var _ port.BlobStore = (*LocalBlobStore)(nil)
