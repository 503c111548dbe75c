package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "/var/lib/realmsync/uploads", cfg.Storage.LocalRoot)
	assert.Equal(t, 1000, cfg.Export.MessageChunkSize)
	assert.Equal(t, 6, cfg.Export.DownloadWorkers)
	assert.Equal(t, 4, cfg.Export.UserMessageShards)
	assert.Equal(t, 4, cfg.Import.ThumbnailWorkers)
	assert.False(t, cfg.Billing.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://localhost/chat
storage:
  type: s3
  s3_bucket: chat-uploads
  s3_region: us-east-1
export:
  message_chunk_size: 250
billing:
  enabled: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/chat", cfg.DatabaseURL)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "chat-uploads", cfg.Storage.S3Bucket)
	assert.Equal(t, 250, cfg.Export.MessageChunkSize)
	assert.True(t, cfg.Billing.Enabled)
	assert.Equal(t, "chat-uploads", cfg.Storage.AvatarsBucket,
		"avatars bucket defaults to the uploads bucket")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("S3_BUCKET", "env-bucket")
	t.Setenv("S3_AVATARS_BUCKET", "env-avatars")
	t.Setenv("BILLING_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	assert.Equal(t, "env-bucket", cfg.Storage.S3Bucket)
	assert.Equal(t, "env-avatars", cfg.Storage.AvatarsBucket)
	assert.True(t, cfg.Billing.Enabled)
}

func TestLoadRejectsUnknownStorageType(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "ftp")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.type")
}

func TestLoadRequiresBucketForS3(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "s3")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3_bucket")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
