package importer

import (
	"context"
	"time"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// importAuditLog replays the source audit log when the export has one, or
// synthesizes subscription-created events from the just-inserted
// subscriptions when it does not, so seat-counting logic downstream has
// data either way. A realm-created event is guaranteed to exist
// afterward; a synthesized one is marked backfilled.
func (im *Importer) importAuditLog(ctx context.Context, data domain.TableData) error {
	entries := data[domain.TableRealmAuditLog]
	hasRealmCreated := false
	for _, e := range entries {
		if e.Int("event_type") == domain.AuditRealmCreated {
			hasRealmCreated = true
		}
	}

	if len(entries) > 0 {
		if err := im.allocateAndInsert(ctx, domain.TableRealmAuditLog, "realmauditlog", entries); err != nil {
			return err
		}
		logger.Info("replayed audit log", "entries", len(entries))
	} else {
		if err := im.backfillSubscriptionEvents(ctx, data); err != nil {
			return err
		}
	}

	if !hasRealmCreated {
		if err := im.insertAuditEvent(ctx, domain.Record{
			"realm_id":   im.newRealmID,
			"event_type": domain.AuditRealmCreated,
			"event_time": time.Now().UTC(),
			"backfilled": true,
			"extra_data": "{}",
		}); err != nil {
			return err
		}
		logger.Info("backfilled realm-created audit event")
	}
	return nil
}

// backfillSubscriptionEvents synthesizes one subscription-created event
// per imported subscription. The subscription rows carry their new IDs
// and remapped references at this point.
func (im *Importer) backfillSubscriptionEvents(ctx context.Context, data domain.TableData) error {
	subs := data[domain.TableSubscription]
	if len(subs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	records := make([]domain.Record, len(subs))
	for i, s := range subs {
		records[i] = domain.Record{
			"realm_id":         im.newRealmID,
			"event_type":       domain.AuditSubscriptionCreated,
			"event_time":       now,
			"backfilled":       true,
			"extra_data":       "{}",
			"modified_user_id": s.Int("user_profile_id"),
		}
	}
	ids, err := im.store.AllocateIDs(ctx, domain.TableRealmAuditLog, len(records))
	if err != nil {
		return err
	}
	for i, r := range records {
		r["id"] = ids[i]
	}
	if err := im.store.BulkInsert(ctx, domain.TableRealmAuditLog, records); err != nil {
		return err
	}
	logger.Info("backfilled subscription audit events", "count", len(records))
	return nil
}

// insertAuditEvent writes one audit row with a fresh ID.
func (im *Importer) insertAuditEvent(ctx context.Context, event domain.Record) error {
	ids, err := im.store.AllocateIDs(ctx, domain.TableRealmAuditLog, 1)
	if err != nil {
		return err
	}
	event["id"] = ids[0]
	return im.store.BulkInsert(ctx, domain.TableRealmAuditLog, []domain.Record{event})
}
