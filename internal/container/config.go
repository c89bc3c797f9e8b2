// Package container provides dependency injection and lifecycle management
// for the site invoice service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Storage drivers understood by the container
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Storage configuration
	Storage StorageConfig

	// OpenAI configuration, optional
	OpenAI OpenAIConfig

	// Lark configuration, optional
	Lark LarkConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// StorageConfig holds attachment storage settings.
type StorageConfig struct {
	// Driver selects the blob store: "local" or "s3"
	Driver string

	// LocalDir is the base directory of the local blob store
	LocalDir string

	// StagingDir holds captured documents until they are uploaded
	StagingDir string

	// StagingMaxAge is how long an unreferenced capture is kept
	StagingMaxAge time.Duration

	// SweepInterval is how often stale captures are looked for
	SweepInterval time.Duration

	// ThumbnailMaxPx bounds the longer side of rendered thumbnails
	ThumbnailMaxPx uint

	// ThumbnailQuality is the JPEG quality of thumbnails
	ThumbnailQuality int

	// S3 settings, used when Driver is "s3"
	S3Bucket          string
	S3Region          string
	S3Prefix          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// OpenAIConfig holds prefill settings. Prefill is off without an API key.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	PromptsPath string
	Timeout     time.Duration
}

// LarkConfig holds notification settings. Notifications are off unless
// AppID, AppSecret and ChatID are all set.
type LarkConfig struct {
	AppID     string
	AppSecret string
	ChatID    string
	BaseURL   string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/invoices.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Storage: StorageConfig{
			Driver:           StorageDriverLocal,
			LocalDir:         "data/blobs",
			StagingDir:       "data/staging",
			StagingMaxAge:    24 * time.Hour,
			SweepInterval:    time.Hour,
			ThumbnailMaxPx:   320,
			ThumbnailQuality: 80,
			S3Region:         "us-east-1",
		},
		OpenAI: OpenAIConfig{
			Model:   "gpt-4o",
			Timeout: 60 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	// Validate database configuration
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate storage configuration
	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required")
		}
	case StorageDriverS3:
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.StagingMaxAge <= 0 || c.Storage.SweepInterval <= 0 {
		return fmt.Errorf("storage staging max age and sweep interval must be positive")
	}
	if c.Storage.StagingDir == "" {
		return fmt.Errorf("storage.staging_dir is required")
	}
	if c.Storage.ThumbnailMaxPx == 0 {
		return fmt.Errorf("storage.thumbnail_max_px must be positive")
	}

	return nil
}
