package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
)

// S3Scheme prefixes URIs of blobs kept in S3
const S3Scheme = "s3://"

// S3Config holds connection settings for S3BlobStore
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // S3-compatible endpoint, e.g. MinIO; empty for AWS
}

// s3API is the subset of *s3.Client used by S3BlobStore
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3BlobStore keeps store-of-record blobs in an S3 bucket
type S3BlobStore struct {
	client s3API
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3BlobStore creates an S3-backed blob store. Static credentials are
// used when configured; otherwise the default AWS credential chain applies.
func NewS3BlobStore(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*aws_config.LoadOptions) error{
		aws_config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("S3 blob store configured",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("prefix", cfg.Prefix))

	return newS3BlobStore(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3BlobStore(client s3API, bucket, prefix string, logger *zap.Logger) *S3BlobStore {
	return &S3BlobStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Put uploads content and returns its s3://bucket/key URI
func (s *S3BlobStore) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	objectKey := s.objectKey(key)
	if objectKey == "" {
		return "", fmt.Errorf("empty blob key")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		s.logger.Error("Failed to put object", zap.String("key", objectKey), zap.Error(err))
		return "", fmt.Errorf("failed to put object %s: %w", objectKey, err)
	}

	return S3Scheme + s.bucket + "/" + objectKey, nil
}

// Get downloads the object behind an s3:// URI
func (s *S3BlobStore) Get(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		s.logger.Error("Failed to get object", zap.String("uri", uri), zap.Error(err))
		return nil, fmt.Errorf("failed to get object %s: %w", uri, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", uri, err)
	}
	return content, nil
}

// Delete removes the object behind an s3:// URI
func (s *S3BlobStore) Delete(ctx context.Context, uri string) error {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		s.logger.Error("Failed to delete object", zap.String("uri", uri), zap.Error(err))
		return fmt.Errorf("failed to delete object %s: %w", uri, err)
	}
	return nil
}

func (s *S3BlobStore) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return ""
	}
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func parseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, S3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 uri: %q", uri)
	}
	return bucket, key, nil
}

var _ port.BlobStore = (*S3BlobStore)(nil)
