// Package config loads the realmsync configuration from a yaml file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the transfer engine.
type Config struct {
	DatabaseURL string        `yaml:"database_url"`
	Storage     StorageConfig `yaml:"storage"`
	Export      ExportConfig  `yaml:"export"`
	Import      ImportConfig  `yaml:"import"`
	Billing     BillingConfig `yaml:"billing"`
	Push        PushConfig    `yaml:"push"`
	RedisAddr   string        `yaml:"redis_addr"`
}

// StorageConfig selects the blob storage backend.
type StorageConfig struct {
	Type          string `yaml:"type"` // "local" or "s3"
	LocalRoot     string `yaml:"local_root"`
	S3Bucket      string `yaml:"s3_bucket"`
	AvatarsBucket string `yaml:"avatars_bucket"`
	S3Region      string `yaml:"s3_region"`
	AWSProfile    string `yaml:"aws_profile"`
}

// ExportConfig tunes the export pipeline.
type ExportConfig struct {
	MessageChunkSize  int `yaml:"message_chunk_size"`
	DownloadWorkers   int `yaml:"download_workers"`
	UserMessageShards int `yaml:"usermessage_shards"`
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	ThumbnailWorkers int `yaml:"thumbnail_workers"`
}

// BillingConfig gates plan-type defaulting and auth-method pruning.
type BillingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PushConfig points at the push notification bouncer, announced to at the
// end of a successful import.
type PushConfig struct {
	BouncerURL string `yaml:"bouncer_url"`
}

// Load reads the yaml file at path (optional), layering a local .env and
// process environment variables on top. All fields have working defaults
// for a local single-host deployment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Env overrides
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("STORAGE_LOCAL_ROOT"); v != "" {
		cfg.Storage.LocalRoot = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("S3_AVATARS_BUCKET"); v != "" {
		cfg.Storage.AvatarsBucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.Storage.S3Region = v
	}
	if v := os.Getenv("AWS_PROFILE_OVERRIDE"); v != "" {
		cfg.Storage.AWSProfile = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("PUSH_BOUNCER_URL"); v != "" {
		cfg.Push.BouncerURL = v
	}
	if os.Getenv("BILLING_ENABLED") == "true" {
		cfg.Billing.Enabled = true
	}

	// Defaults
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.LocalRoot == "" {
		cfg.Storage.LocalRoot = "/var/lib/realmsync/uploads"
	}
	if cfg.Storage.AvatarsBucket == "" {
		cfg.Storage.AvatarsBucket = cfg.Storage.S3Bucket
	}
	if cfg.Export.MessageChunkSize == 0 {
		cfg.Export.MessageChunkSize = 1000
	}
	if cfg.Export.DownloadWorkers == 0 {
		cfg.Export.DownloadWorkers = 6
	}
	if cfg.Export.UserMessageShards == 0 {
		cfg.Export.UserMessageShards = 4
	}
	if cfg.Import.ThumbnailWorkers == 0 {
		cfg.Import.ThumbnailWorkers = 4
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("storage.type must be \"local\" or \"s3\", got %q", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("storage.s3_bucket is required when storage.type is s3")
	}
	return nil
}
