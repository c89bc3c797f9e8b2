package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Storage drivers
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig holds attachment storage configuration
type StorageConfig struct {
	Driver           string        `mapstructure:"driver"`
	LocalDir         string        `mapstructure:"local_dir"`
	StagingDir       string        `mapstructure:"staging_dir"`
	StagingMaxAge    time.Duration `mapstructure:"staging_max_age"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	ThumbnailMaxPx   int           `mapstructure:"thumbnail_max_px"`
	ThumbnailQuality int           `mapstructure:"thumbnail_quality"`
	S3               S3Config      `mapstructure:"s3"`
}

// S3Config holds S3 bucket settings, used when Driver is "s3"
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// OpenAIConfig holds settings for attachment prefill. Prefill is disabled
// when APIKey is empty.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	PromptsPath string        `mapstructure:"prompts_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether prefill is configured
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// LarkConfig holds settings for sync notifications. Notifications are
// disabled unless all of AppID, AppSecret and ChatID are set.
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	ChatID    string `mapstructure:"chat_id"`
	BaseURL   string `mapstructure:"base_url"`
}

// Enabled reports whether notifications are configured
func (c LarkConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.ChatID != ""
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional .env file, the YAML file at
// configPath and the environment, in increasing order of precedence. A
// missing config file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/invoices.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Storage defaults
	v.SetDefault("storage.driver", StorageDriverLocal)
	v.SetDefault("storage.local_dir", "data/blobs")
	v.SetDefault("storage.staging_dir", "data/staging")
	v.SetDefault("storage.staging_max_age", "24h")
	v.SetDefault("storage.sweep_interval", "1h")
	v.SetDefault("storage.thumbnail_max_px", 320)
	v.SetDefault("storage.thumbnail_quality", 80)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.prefix", "invoices")

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout", 60*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.chat_id", "LARK_CHAT_ID")
	_ = v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	_ = v.BindEnv("storage.s3.access_key_id", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.s3.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("server.port", "PORT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}

	// Validate database
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate storage
	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local driver")
		}
	case StorageDriverS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 driver")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required for the s3 driver")
		}
		if (c.Storage.S3.AccessKeyID == "") != (c.Storage.S3.SecretAccessKey == "") {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.StagingMaxAge <= 0 || c.Storage.SweepInterval <= 0 {
		return fmt.Errorf("storage.staging_max_age and storage.sweep_interval must be positive")
	}
	if c.Storage.StagingDir == "" {
		return fmt.Errorf("storage.staging_dir is required")
	}
	if c.Storage.ThumbnailMaxPx <= 0 {
		return fmt.Errorf("storage.thumbnail_max_px must be positive")
	}

	// Validate OpenAI, only when enabled
	if c.OpenAI.Enabled() && c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model is required when openai.api_key is set")
	}

	return nil
}
