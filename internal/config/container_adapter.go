package config

import (
	"github.com/garyjia/site-invoices/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Storage: container.StorageConfig{
			Driver:            c.Storage.Driver,
			LocalDir:          c.Storage.LocalDir,
			StagingDir:        c.Storage.StagingDir,
			StagingMaxAge:     c.Storage.StagingMaxAge,
			SweepInterval:     c.Storage.SweepInterval,
			ThumbnailMaxPx:    uint(c.Storage.ThumbnailMaxPx),
			ThumbnailQuality:  c.Storage.ThumbnailQuality,
			S3Bucket:          c.Storage.S3.Bucket,
			S3Region:          c.Storage.S3.Region,
			S3Prefix:          c.Storage.S3.Prefix,
			S3Endpoint:        c.Storage.S3.Endpoint,
			S3AccessKeyID:     c.Storage.S3.AccessKeyID,
			S3SecretAccessKey: c.Storage.S3.SecretAccessKey,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:      c.OpenAI.APIKey,
			BaseURL:     c.OpenAI.BaseURL,
			Model:       c.OpenAI.Model,
			PromptsPath: c.OpenAI.PromptsPath,
			Timeout:     c.OpenAI.Timeout,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			ChatID:    c.Lark.ChatID,
			BaseURL:   c.Lark.BaseURL,
		},
	}
}
