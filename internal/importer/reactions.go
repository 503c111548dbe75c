package importer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// importReactions materializes reactions. Realm-emoji reactions store a
// stringified realm-emoji foreign key in emoji_code; it is remapped and
// then cross-checked against the emoji's name. A mismatch means the
// emoji identity was silently corrupted somewhere and is fatal.
func (im *Importer) importReactions(ctx context.Context, data domain.TableData) error {
	reactions := data[domain.TableReaction]
	if len(reactions) == 0 {
		return nil
	}
	if err := im.remapEmojiCodes(domain.TableReaction, reactions); err != nil {
		return err
	}
	if err := im.allocateAndInsert(ctx, domain.TableReaction, "reaction", reactions); err != nil {
		return err
	}
	logger.Info("imported reactions", "count", len(reactions))
	return nil
}

// importUserStatus materializes status rows, which carry the same
// realm-emoji indirection as reactions.
func (im *Importer) importUserStatus(ctx context.Context, data domain.TableData) error {
	statuses := data[domain.TableUserStatus]
	if len(statuses) == 0 {
		return nil
	}
	if err := im.remapEmojiCodes(domain.TableUserStatus, statuses); err != nil {
		return err
	}
	if err := im.allocateAndInsert(ctx, domain.TableUserStatus, "userstatus", statuses); err != nil {
		return err
	}
	logger.Info("imported user status rows", "count", len(statuses))
	return nil
}

// remapEmojiCodes rewrites the realm-emoji indirection on rows whose
// reaction_type selects a realm emoji, and asserts the remapped emoji
// still carries the cached display name.
func (im *Importer) remapEmojiCodes(table string, records []domain.Record) error {
	for _, r := range records {
		if r.Str("reaction_type") != domain.EmojiTypeRealmEmoji {
			continue
		}
		oldCode, err := strconv.ParseInt(r.Str("emoji_code"), 10, 64)
		if err != nil {
			return fmt.Errorf("import: %s row %d has non-numeric realm emoji_code %q",
				table, r.Int("id"), r.Str("emoji_code"))
		}
		newCode, ok := im.sess.MapID("realmemoji", oldCode)
		if !ok {
			return fmt.Errorf("import: %s row %d references unknown realm emoji %d",
				table, r.Int("id"), oldCode)
		}
		name, ok := im.realmEmojiNames[newCode]
		if !ok || name != r.Str("emoji_name") {
			return fmt.Errorf("import: %s row %d emoji name %q does not match realm emoji %d name %q",
				table, r.Int("id"), r.Str("emoji_name"), newCode, name)
		}
		r["emoji_code"] = strconv.FormatInt(newCode, 10)
	}
	return nil
}

// recomputeFirstMessageIDs refreshes each stream's cached first message
// ID with an aggregate over the imported message table. The source values
// point at source-realm message IDs and cannot be carried over.
func (im *Importer) recomputeFirstMessageIDs(ctx context.Context, data domain.TableData) error {
	if len(im.streamRecipient) == 0 {
		return nil
	}
	recipientIDs := make([]int64, 0, len(im.streamRecipient))
	recipientToStream := make(map[int64]int64, len(im.streamRecipient))
	for streamID, recipientID := range im.streamRecipient {
		recipientIDs = append(recipientIDs, recipientID)
		recipientToStream[recipientID] = streamID
	}

	firsts, err := im.store.FirstMessageIDs(ctx, recipientIDs)
	if err != nil {
		return err
	}
	for recipientID, streamID := range recipientToStream {
		var value any
		if first, ok := firsts[recipientID]; ok {
			value = first
		}
		if err := im.store.SetColumn(ctx, domain.TableStream, "first_message_id", streamID, value); err != nil {
			return err
		}
	}
	logger.Info("recomputed stream first_message_id", "streams", len(recipientToStream))
	return nil
}
