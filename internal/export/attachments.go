package export

import (
	"context"
	"path/filepath"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
	"github.com/chatforge/realmsync/internal/schema"
)

// exportAttachments writes attachment.json: the realm's attachment rows
// plus the join tables binding them to messages and scheduled messages.
// The join tables are persisted explicitly rather than denormalized onto
// the attachment rows, so the importer can rebuild them with remapped IDs
// without re-deriving membership.
//
// An attachment survives only if at least one of its claiming messages or
// scheduled messages was exported. Join rows pointing at unexported
// messages are dropped with it, which is what scopes attachments in a
// consented export.
func (e *Exporter) exportAttachments(ctx context.Context, dir string, ec *schema.Context, messageIDs, scheduledIDs []int64) ([]domain.Record, error) {
	atts, err := e.store.FetchByFK(ctx, domain.TableAttachment, "realm_id", []int64{ec.RealmID}, nil)
	if err != nil {
		return nil, err
	}
	attIDs := domain.IDs(atts, "id")

	joins, err := e.store.FetchByFK(ctx, domain.TableAttachmentMessages, "attachment_id", attIDs, nil)
	if err != nil {
		return nil, err
	}
	schedJoins, err := e.store.FetchByFK(ctx, domain.TableAttachmentScheduledMsgs, "attachment_id", attIDs, nil)
	if err != nil {
		return nil, err
	}

	joins = filterJoins(joins, "message_id", toSet(messageIDs))
	schedJoins = filterJoins(schedJoins, "scheduledmessage_id", toSet(scheduledIDs))

	claimed := make(map[int64]bool)
	for _, j := range joins {
		claimed[j.Int("attachment_id")] = true
	}
	for _, j := range schedJoins {
		claimed[j.Int("attachment_id")] = true
	}
	kept := atts[:0]
	for _, a := range atts {
		if claimed[a.Int("id")] {
			kept = append(kept, a)
		}
	}

	normalizeTable(domain.TableAttachment, kept, nil)
	normalizeTable(domain.TableAttachmentMessages, joins, nil)
	normalizeTable(domain.TableAttachmentScheduledMsgs, schedJoins, nil)

	logger.Info("exported attachments",
		"attachments", len(kept), "message_links", len(joins))
	err = writeJSONFile(filepath.Join(dir, AttachmentFile), domain.TableData{
		domain.TableAttachment:              kept,
		domain.TableAttachmentMessages:      joins,
		domain.TableAttachmentScheduledMsgs: schedJoins,
	})
	if err != nil {
		return nil, err
	}
	return kept, nil
}

func filterJoins(joins []domain.Record, field string, allowed map[int64]bool) []domain.Record {
	out := joins[:0]
	for _, j := range joins {
		if allowed[j.Int(field)] {
			out = append(out, j)
		}
	}
	return out
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
