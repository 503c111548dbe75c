// Package blob copies binary content (uploads, avatars, realm emoji,
// realm icons) between storage backends and the export directory layout,
// and maintains the per-category records.json manifests.
package blob

import (
	"context"
	"mime"
	"path/filepath"
	"time"
)

// MetaUserProfileID is the object metadata key carrying the owning user.
// Avatar transfers require it on every selected key.
const MetaUserProfileID = "user_profile_id"

// ObjectMeta is the backend-independent metadata of a stored object.
type ObjectMeta struct {
	ContentType  string
	Size         int64
	LastModified time.Time
	// UserMeta holds backend-attached key/value metadata. May be nil on
	// backends that do not persist metadata.
	UserMeta map[string]string
}

// Backend is the capability set both storage shapes provide. Keys are
// slash-separated relative paths.
type Backend interface {
	// List returns every key under prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Fetch reads an object and its metadata.
	Fetch(ctx context.Context, key string) ([]byte, ObjectMeta, error)
	// Store writes an object with the given metadata.
	Store(ctx context.Context, key string, data []byte, meta ObjectMeta) error
}

// guessContentType falls back on the key's extension when a backend has no
// stored content type.
func guessContentType(key, stored string) string {
	if stored != "" {
		return stored
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// floatTime is the manifest representation of a timestamp.
func floatTime(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UTC().UnixNano()) / float64(time.Second)
}
