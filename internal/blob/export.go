package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// Transfer copies blobs between a storage backend and an export directory.
type Transfer struct {
	backend Backend
	workers int
}

// NewTransfer creates a transfer pool over the backend.
func NewTransfer(b Backend, workers int) *Transfer {
	if workers <= 0 {
		workers = 1
	}
	return &Transfer{backend: b, workers: workers}
}

// ExportUploads copies every exported attachment's bytes into
// dir/uploads/<path_id> and writes the uploads manifest. The attachment
// rows must already be in export form (bare foreign-key names).
func (t *Transfer) ExportUploads(ctx context.Context, dir string, attachments []domain.Record) error {
	records := make([]domain.BlobRecord, len(attachments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, a := range attachments {
		g.Go(func() error {
			key := a.Str("path_id")
			meta, err := t.copyOut(gctx, key, filepath.Join(dir, domain.BlobUploads))
			if err != nil {
				return err
			}
			records[i] = domain.BlobRecord{
				Path:          key,
				SourcePath:    key,
				Size:          meta.Size,
				LastModified:  floatTime(meta.LastModified),
				ContentType:   meta.ContentType,
				UserProfileID: a.Int("owner"),
				RealmID:       a.Int("realm"),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("exported uploads", "count", len(records))
	return writeManifest(dir, domain.BlobUploads, records)
}

// ExportAvatars copies the avatar images of the given users into
// dir/avatars/ and writes the avatars manifest. Only keys matching a
// user's computed avatar path (or its ".original" variant) are taken from
// the listing, and each must carry user_profile_id metadata naming a user
// in the set. The email gateway bot is the one tolerated exception: its
// avatar is owned by a cross-tenant bot, so its metadata points outside
// the realm.
func (t *Transfer) ExportAvatars(ctx context.Context, dir string, realmID int64, users []domain.Record, gatewayBotID int64) error {
	userIDs := make(map[int64]bool, len(users))
	wanted := make(map[string]int64)
	for _, u := range users {
		id := u.Int("id")
		userIDs[id] = true
		wanted[AvatarBasePath(realmID, id)] = id
		wanted[AvatarOriginalPath(realmID, id)] = id
	}

	keys, err := t.backend.List(ctx, fmt.Sprintf("%d/", realmID))
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		records []domain.BlobRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, key := range keys {
		if _, ok := wanted[key]; !ok {
			continue
		}
		g.Go(func() error {
			data, meta, err := t.backend.Fetch(gctx, key)
			if err != nil {
				return err
			}
			ownerID, err := avatarOwner(key, meta, userIDs, gatewayBotID)
			if err != nil {
				return err
			}
			if err := writeBlobFile(filepath.Join(dir, domain.BlobAvatars), key, data); err != nil {
				return err
			}
			mu.Lock()
			records = append(records, domain.BlobRecord{
				Path:          key,
				SourcePath:    key,
				Size:          meta.Size,
				LastModified:  floatTime(meta.LastModified),
				ContentType:   meta.ContentType,
				UserProfileID: ownerID,
				RealmID:       realmID,
				Original:      strings.HasSuffix(key, ".original"),
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	logger.Info("exported avatars", "count", len(records))
	return writeManifest(dir, domain.BlobAvatars, records)
}

// avatarOwner validates the ownership metadata on an avatar key.
func avatarOwner(key string, meta ObjectMeta, userIDs map[int64]bool, gatewayBotID int64) (int64, error) {
	raw, ok := meta.UserMeta[MetaUserProfileID]
	if !ok {
		return 0, fmt.Errorf("avatar %s has no %s metadata", key, MetaUserProfileID)
	}
	ownerID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("avatar %s has malformed %s metadata %q", key, MetaUserProfileID, raw)
	}
	if !userIDs[ownerID] && ownerID != gatewayBotID {
		return 0, fmt.Errorf("avatar %s owned by unknown user %d", key, ownerID)
	}
	return ownerID, nil
}

// ExportEmoji copies the realm's custom emoji images and writes the emoji
// manifest. The emoji rows must be in export form.
func (t *Transfer) ExportEmoji(ctx context.Context, dir string, realmID int64, emoji []domain.Record) error {
	records := make([]domain.BlobRecord, len(emoji))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, e := range emoji {
		g.Go(func() error {
			key := EmojiPath(realmID, e.Str("file_name"))
			meta, err := t.copyOut(gctx, key, filepath.Join(dir, domain.BlobEmoji))
			if err != nil {
				return err
			}
			records[i] = domain.BlobRecord{
				Path:          key,
				SourcePath:    key,
				Size:          meta.Size,
				LastModified:  floatTime(meta.LastModified),
				ContentType:   meta.ContentType,
				UserProfileID: e.Int("author"),
				RealmID:       realmID,
				Name:          e.Str("name"),
				FileName:      e.Str("file_name"),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("exported emoji", "count", len(records))
	return writeManifest(dir, domain.BlobEmoji, records)
}

// ExportRealmIcons copies the realm's icon and logo images, if any, and
// writes the realm_icons manifest.
func (t *Transfer) ExportRealmIcons(ctx context.Context, dir string, realmID int64) error {
	keys, err := t.backend.List(ctx, RealmIconPrefix(realmID))
	if err != nil {
		return err
	}

	records := make([]domain.BlobRecord, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, key := range keys {
		g.Go(func() error {
			meta, err := t.copyOut(gctx, key, filepath.Join(dir, domain.BlobRealmIcons))
			if err != nil {
				return err
			}
			records[i] = domain.BlobRecord{
				Path:         key,
				SourcePath:   key,
				Size:         meta.Size,
				LastModified: floatTime(meta.LastModified),
				ContentType:  meta.ContentType,
				RealmID:      realmID,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("exported realm icons", "count", len(records))
	return writeManifest(dir, domain.BlobRealmIcons, records)
}

// copyOut fetches key and writes its bytes under destDir at the key's
// relative path.
func (t *Transfer) copyOut(ctx context.Context, key, destDir string) (ObjectMeta, error) {
	data, meta, err := t.backend.Fetch(ctx, key)
	if err != nil {
		return ObjectMeta{}, err
	}
	meta.ContentType = guessContentType(key, meta.ContentType)
	return meta, writeBlobFile(destDir, key, data)
}

func writeBlobFile(destDir, key string, data []byte) error {
	path := filepath.Join(destDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writeManifest writes the category's records.json. It runs only after
// every blob in the category has been transferred; a manifest on disk
// therefore promises its bytes are all present.
func writeManifest(dir, category string, records []domain.BlobRecord) error {
	if records == nil {
		records = []domain.BlobRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s manifest: %w", category, err)
	}
	path := filepath.Join(dir, category, "records.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifest loads a category's records.json. A missing manifest returns
// ok=false: some categories are legitimately absent from an export.
func ReadManifest(dir, category string) ([]domain.BlobRecord, bool, error) {
	path := filepath.Join(dir, category, "records.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var records []domain.BlobRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, true, nil
}
