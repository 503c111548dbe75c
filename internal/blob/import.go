package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
	"github.com/chatforge/realmsync/internal/session"
)

// ImportUploads copies the export's generic uploads into the destination
// backend under the new realm's prefix and records every old-path to
// new-path pair in the session. Attachment rows are rewritten from that
// map later, so this must run before attachment materialization.
func (t *Transfer) ImportUploads(ctx context.Context, dir string, sess *session.Session, newRealmID int64) error {
	records, ok, err := ReadManifest(dir, domain.BlobUploads)
	if err != nil {
		return err
	}
	if !ok {
		logger.Warn("export has no uploads manifest, skipping uploads")
		return nil
	}

	// Path pairs are registered up front, serially: the session map is
	// not written from the transfer pool.
	newPaths := make([]string, len(records))
	for i, rec := range records {
		newPaths[i] = rewriteRealmPrefix(rec.Path, newRealmID)
		sess.SetPath(rec.Path, newPaths[i])
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i, rec := range records {
		g.Go(func() error {
			data, err := readBlobFile(dir, domain.BlobUploads, rec.Path)
			if err != nil {
				return err
			}
			meta := ObjectMeta{
				ContentType:  rec.ContentType,
				Size:         int64(len(data)),
				LastModified: time.Now(),
			}
			if newOwner, ok := sess.MapID("user_profile", rec.UserProfileID); ok {
				meta.UserMeta = map[string]string{
					MetaUserProfileID: strconv.FormatInt(newOwner, 10),
				}
			}
			return t.backend.Store(gctx, newPaths[i], data, meta)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("imported uploads", "count", len(records))
	return nil
}

// ImportAvatars copies avatar images into the destination backend under
// freshly computed per-user keys, then regenerates the medium thumbnail
// for every user with an original. A single corrupt image does not fail
// the run: it is logged and the user's new ID is returned so the caller
// can reset that avatar to the gravatar fallback.
func (t *Transfer) ImportAvatars(ctx context.Context, dir string, sess *session.Session, newRealmID int64, thumbWorkers int) ([]int64, error) {
	records, ok, err := ReadManifest(dir, domain.BlobAvatars)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Warn("export has no avatars manifest, skipping avatars")
		return nil, nil
	}

	var (
		mu        sync.Mutex
		originals = make(map[int64][]byte)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, rec := range records {
		newUser, mapped := sess.MapID("user_profile", rec.UserProfileID)
		if !mapped {
			// Cross-tenant metadata, in practice the email gateway
			// bot. The destination server has its own bot avatar.
			logger.Warn("skipping avatar owned by unmapped user",
				"old_user_id", rec.UserProfileID, "path", rec.Path)
			continue
		}
		g.Go(func() error {
			data, err := readBlobFile(dir, domain.BlobAvatars, rec.Path)
			if err != nil {
				return err
			}
			key := AvatarBasePath(newRealmID, newUser)
			if rec.Original {
				key = AvatarOriginalPath(newRealmID, newUser)
				mu.Lock()
				originals[newUser] = data
				mu.Unlock()
			}
			meta := ObjectMeta{
				ContentType:  rec.ContentType,
				Size:         int64(len(data)),
				LastModified: time.Now(),
				UserMeta: map[string]string{
					MetaUserProfileID: strconv.FormatInt(newUser, 10),
				},
			}
			return t.backend.Store(gctx, key, data, meta)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed, err := t.regenerateThumbnails(ctx, newRealmID, originals, thumbWorkers)
	if err != nil {
		return nil, err
	}
	logger.Info("imported avatars",
		"records", len(records), "thumbnails", len(originals)-len(failed),
		"failed", len(failed))
	return failed, nil
}

// regenerateThumbnails builds the medium thumbnail for each original.
// Thumbnailing is CPU bound and per-image independent, so it gets its own
// worker limit. Storage errors are fatal; decode errors are per-image.
func (t *Transfer) regenerateThumbnails(ctx context.Context, newRealmID int64, originals map[int64][]byte, workers int) ([]int64, error) {
	if workers <= 0 {
		workers = 1
	}
	var (
		mu     sync.Mutex
		failed []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for userID, data := range originals {
		g.Go(func() error {
			thumb, err := mediumThumbnail(data)
			if err != nil {
				logger.Warn("avatar thumbnail failed, falling back to gravatar",
					"user_id", userID, "error", err.Error())
				mu.Lock()
				failed = append(failed, userID)
				mu.Unlock()
				return nil
			}
			return t.backend.Store(gctx, AvatarMediumPath(newRealmID, userID), thumb, ObjectMeta{
				ContentType:  "image/png",
				Size:         int64(len(thumb)),
				LastModified: time.Now(),
				UserMeta: map[string]string{
					MetaUserProfileID: strconv.FormatInt(userID, 10),
				},
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed, nil
}

// ImportEmoji copies custom emoji images, if the export carries any.
// Native exports ship emoji inside the generic uploads category, so a
// missing manifest is normal, not an error.
func (t *Transfer) ImportEmoji(ctx context.Context, dir string, newRealmID int64) error {
	records, ok, err := ReadManifest(dir, domain.BlobEmoji)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug("export has no emoji manifest, skipping emoji")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, rec := range records {
		g.Go(func() error {
			data, err := readBlobFile(dir, domain.BlobEmoji, rec.Path)
			if err != nil {
				return err
			}
			return t.backend.Store(gctx, EmojiPath(newRealmID, rec.FileName), data, ObjectMeta{
				ContentType:  rec.ContentType,
				Size:         int64(len(data)),
				LastModified: time.Now(),
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("imported emoji", "count", len(records))
	return nil
}

// ImportRealmIcons copies the realm icon and logo images, if the export
// carries any.
func (t *Transfer) ImportRealmIcons(ctx context.Context, dir string, newRealmID int64) error {
	records, ok, err := ReadManifest(dir, domain.BlobRealmIcons)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug("export has no realm_icons manifest, skipping icons")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, rec := range records {
		g.Go(func() error {
			data, err := readBlobFile(dir, domain.BlobRealmIcons, rec.Path)
			if err != nil {
				return err
			}
			return t.backend.Store(gctx, rewriteRealmPrefix(rec.Path, newRealmID), data, ObjectMeta{
				ContentType:  rec.ContentType,
				Size:         int64(len(data)),
				LastModified: time.Now(),
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("imported realm icons", "count", len(records))
	return nil
}

func readBlobFile(dir, category, key string) ([]byte, error) {
	path := filepath.Join(dir, category, filepath.FromSlash(key))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s blob %s: %w", category, key, err)
	}
	return data, nil
}
