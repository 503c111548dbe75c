package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// metaSuffix names the sidecar file carrying user metadata for a local
// object. The filesystem has no native metadata channel, and avatar
// transfers need the ownership check to work on both backends.
const metaSuffix = ".metadata.json"

// LocalBackend stores blobs under a root directory, one file per key.
type LocalBackend struct {
	root string
}

// NewLocalBackend creates a local backend rooted at dir.
func NewLocalBackend(dir string) *LocalBackend {
	return &LocalBackend{root: dir}
}

func (b *LocalBackend) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

func (b *LocalBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasSuffix(key, metaSuffix) {
			return nil
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s under %s: %w", prefix, b.root, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *LocalBackend) Fetch(ctx context.Context, key string) ([]byte, ObjectMeta, error) {
	path := b.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("fetching %s: %w", key, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, ObjectMeta{}, err
	}

	meta := ObjectMeta{
		ContentType:  guessContentType(key, ""),
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}
	if side, err := os.ReadFile(path + metaSuffix); err == nil {
		var userMeta map[string]string
		if err := json.Unmarshal(side, &userMeta); err != nil {
			return nil, ObjectMeta{}, fmt.Errorf("corrupt metadata sidecar for %s: %w", key, err)
		}
		meta.UserMeta = userMeta
	}
	return data, meta, nil
}

func (b *LocalBackend) Store(ctx context.Context, key string, data []byte, meta ObjectMeta) error {
	path := b.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	if len(meta.UserMeta) > 0 {
		side, err := json.Marshal(meta.UserMeta)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path+metaSuffix, side, 0o644); err != nil {
			return fmt.Errorf("storing metadata for %s: %w", key, err)
		}
	}
	return nil
}
