package importer

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/export"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// importBlobs runs the blob transfer phase: avatars first (with thumbnail
// regeneration and gravatar fallback for failures), then uploads, then
// the conditional emoji and realm-icon categories.
func (im *Importer) importBlobs(ctx context.Context, dir string) error {
	if im.blobs == nil {
		logger.Warn("no blob backend configured, skipping blob import")
		return nil
	}

	avatars := im.blobs
	if im.opts.AvatarTransfer != nil {
		avatars = im.opts.AvatarTransfer
	}
	failed, err := avatars.ImportAvatars(ctx, dir, im.sess, im.newRealmID, im.opts.ThumbnailWorkers)
	if err != nil {
		return err
	}
	for _, userID := range failed {
		if err := im.store.SetColumn(ctx, domain.TableUserProfile, "avatar_source", userID, "G"); err != nil {
			return err
		}
	}

	if err := im.blobs.ImportUploads(ctx, dir, im.sess, im.newRealmID); err != nil {
		return err
	}
	if err := im.blobs.ImportEmoji(ctx, dir, im.newRealmID); err != nil {
		return err
	}
	return im.blobs.ImportRealmIcons(ctx, dir, im.newRealmID)
}

// importMessages materializes the message chunks in file order. Message
// IDs were allocated up front, so here each chunk only remaps references,
// rewrites embedded upload URLs and mention attributes, and bulk inserts.
// UserMessage rows ride a dedicated path that never records their IDs in
// the session: nothing references them by foreign key, and at
// multi-million-row scale the bookkeeping is pure overhead.
func (im *Importer) importMessages(ctx context.Context, dir string, chunks int) error {
	rewriter := im.newContentRewriter()

	var total int
	for n := 1; n <= chunks; n++ {
		payload := domain.TableData{}
		if err := readJSON(export.ChunkFile(dir, n), &payload); err != nil {
			return err
		}

		msgs := payload[domain.TableMessage]
		defloatify(domain.TableMessage, msgs)
		if err := im.remapForeignKeys(domain.TableMessage, msgs); err != nil {
			return err
		}
		if err := im.sess.RemapPrimaryKey(msgs, "message"); err != nil {
			return err
		}
		for _, m := range msgs {
			rewriter.rewriteMessage(m)
		}
		if err := im.store.BulkInsert(ctx, domain.TableMessage, msgs); err != nil {
			return fmt.Errorf("chunk %d: %w", n, err)
		}

		if err := im.importUserMessages(ctx, payload[domain.TableUserMessage]); err != nil {
			return fmt.Errorf("chunk %d: %w", n, err)
		}
		total += len(msgs)
	}
	logger.Info("imported messages", "chunks", chunks, "messages", total)
	return nil
}

// importUserMessages is the bulk UserMessage path: remap the two foreign
// keys, assign fresh IDs directly, insert.
func (im *Importer) importUserMessages(ctx context.Context, ums []domain.Record) error {
	if len(ums) == 0 {
		return nil
	}
	if err := im.remapForeignKeys(domain.TableUserMessage, ums); err != nil {
		return err
	}
	ids, err := im.store.AllocateIDs(ctx, domain.TableUserMessage, len(ums))
	if err != nil {
		return err
	}
	for i, um := range ums {
		um["id"] = ids[i]
	}
	return im.store.BulkInsert(ctx, domain.TableUserMessage, ums)
}

// importScheduledMessages materializes scheduled messages with the same
// content-rewrite treatment as messages.
func (im *Importer) importScheduledMessages(ctx context.Context, data domain.TableData) error {
	scheduled := data[domain.TableScheduledMessage]
	if len(scheduled) == 0 {
		return nil
	}
	rewriter := im.newContentRewriter()
	defloatify(domain.TableScheduledMessage, scheduled)
	if err := im.remapForeignKeys(domain.TableScheduledMessage, scheduled); err != nil {
		return err
	}
	for _, m := range scheduled {
		rewriter.rewriteMessage(m)
	}
	ids, err := im.store.AllocateIDs(ctx, domain.TableScheduledMessage, len(scheduled))
	if err != nil {
		return err
	}
	if err := im.sess.AllocateFor("scheduledmessage", scheduled, ids); err != nil {
		return err
	}
	if err := im.store.BulkInsert(ctx, domain.TableScheduledMessage, scheduled); err != nil {
		return err
	}
	logger.Info("imported scheduled messages", "count", len(scheduled))
	return nil
}

// Mention attributes embedded in rendered markup. Patching these in place
// preserves the mention display text even when the mentioned entity has
// since been renamed, which a full re-render would lose.
var (
	mentionUserRe   = regexp.MustCompile(`data-user-id="(\d+)"`)
	mentionStreamRe = regexp.MustCompile(`data-stream-id="(\d+)"`)
	mentionGroupRe  = regexp.MustCompile(`data-user-group-id="(\d+)"`)
)

// contentRewriter rewrites one message's content fields: upload URLs move
// to their new storage paths, and mention attributes move to new IDs.
type contentRewriter struct {
	im    *Importer
	paths *strings.Replacer
}

func (im *Importer) newContentRewriter() *contentRewriter {
	pairs := im.sess.PathPairs()
	repl := make([]string, 0, len(pairs)*2)
	for oldPath, newPath := range pairs {
		repl = append(repl, "/user_uploads/"+oldPath, "/user_uploads/"+newPath)
	}
	return &contentRewriter{im: im, paths: strings.NewReplacer(repl...)}
}

func (c *contentRewriter) rewriteMessage(m domain.Record) {
	m["content"] = c.paths.Replace(m.Str("content"))

	if m.IsNull("rendered_content") || m.Str("rendered_content") == "" {
		// Non-native exports ship raw content only; give it a minimal
		// rendering so clients have something to display. A follow-up
		// full re-render happens on first edit.
		m["rendered_content"] = "<p>" + html.EscapeString(m.Str("content")) + "</p>"
		return
	}

	rendered := c.paths.Replace(m.Str("rendered_content"))
	rendered = c.patchAttr(rendered, mentionUserRe, "user_profile")
	rendered = c.patchAttr(rendered, mentionStreamRe, "stream")
	rendered = c.patchAttr(rendered, mentionGroupRe, "usergroup")
	m["rendered_content"] = rendered
}

func (c *contentRewriter) patchAttr(s string, re *regexp.Regexp, category string) string {
	return re.ReplaceAllStringFunc(s, func(match string) string {
		sub := re.FindStringSubmatch(match)
		oldID, err := strconv.ParseInt(sub[1], 10, 64)
		if err != nil {
			return match
		}
		newID, ok := c.im.sess.MapID(category, oldID)
		if !ok {
			return match
		}
		return strings.Replace(match, sub[1], strconv.FormatInt(newID, 10), 1)
	})
}
