package importer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/export"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// importAttachments materializes attachment rows and then their two
// many-to-many join tables. The joins come last because their rows need
// both sides' new IDs, which only exist after the attachment allocation
// here and the message allocation earlier.
func (im *Importer) importAttachments(ctx context.Context, dir string) error {
	payload := domain.TableData{}
	if err := readJSON(filepath.Join(dir, export.AttachmentFile), &payload); err != nil {
		if os.IsNotExist(err) {
			logger.Warn("export has no attachment.json, skipping attachments")
			return nil
		}
		return err
	}

	atts := payload[domain.TableAttachment]
	for _, a := range atts {
		oldPath := a.Str("path_id")
		if newPath, ok := im.sess.MapPath(oldPath); ok {
			a["path_id"] = newPath
		} else {
			logger.Warn("attachment path missing from upload manifest",
				"path_id", oldPath)
		}
	}
	if err := im.allocateAndInsert(ctx, domain.TableAttachment, "attachment", atts); err != nil {
		return err
	}

	if err := im.importJoinTable(ctx, domain.TableAttachmentMessages, payload[domain.TableAttachmentMessages]); err != nil {
		return err
	}
	if err := im.importJoinTable(ctx, domain.TableAttachmentScheduledMsgs, payload[domain.TableAttachmentScheduledMsgs]); err != nil {
		return err
	}
	logger.Info("imported attachments",
		"attachments", len(atts),
		"message_links", len(payload[domain.TableAttachmentMessages]))
	return nil
}

// importJoinTable inserts many-to-many rows with remapped sides. Join row
// IDs are never referenced elsewhere, so fresh IDs are assigned directly
// without session bookkeeping.
func (im *Importer) importJoinTable(ctx context.Context, table string, rows []domain.Record) error {
	if len(rows) == 0 {
		return nil
	}
	if err := im.remapForeignKeys(table, rows); err != nil {
		return err
	}
	ids, err := im.store.AllocateIDs(ctx, table, len(rows))
	if err != nil {
		return err
	}
	for i, r := range rows {
		r["id"] = ids[i]
	}
	return im.store.BulkInsert(ctx, table, rows)
}
