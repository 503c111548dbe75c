package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// importRecipients materializes the polymorphic recipient table: remap
// type_id by discriminator, allocate fresh IDs, insert, then backfill the
// denormalized recipient pointers on users and streams. The pointers are
// circular with recipient itself, which is why they are set post hoc.
func (im *Importer) importRecipients(ctx context.Context, data domain.TableData) error {
	recipients := data[domain.TableRecipient]
	if len(recipients) == 0 {
		return fmt.Errorf("import: export contains no recipients")
	}

	// Huddle IDs are allocated here, ahead of the huddle rows' own
	// insertion in a later phase, so huddle-type recipients can remap
	// their type_id now. The rows themselves wait until the remapped
	// member lists exist to recompute their hashes.
	if huddles := data[domain.TableHuddle]; len(huddles) > 0 {
		im.huddleOldIDs = make([]int64, len(huddles))
		for i, h := range huddles {
			im.huddleOldIDs[i] = h.Int("id")
		}
		ids, err := im.store.AllocateIDs(ctx, domain.TableHuddle, len(huddles))
		if err != nil {
			return err
		}
		if err := im.sess.AllocateFor("huddle", huddles, ids); err != nil {
			return err
		}
	}

	oldIDs := make([]int64, len(recipients))
	for i, r := range recipients {
		oldIDs[i] = r.Int("id")
	}

	if err := im.sess.RemapRecipients(recipients); err != nil {
		return err
	}
	newIDs, err := im.store.AllocateIDs(ctx, domain.TableRecipient, len(recipients))
	if err != nil {
		return err
	}
	if err := im.sess.AllocateFor("recipient", recipients, newIDs); err != nil {
		return err
	}
	if err := im.store.BulkInsert(ctx, domain.TableRecipient, recipients); err != nil {
		return err
	}

	for i, r := range recipients {
		newRecipientID := r.Int("id")
		typeID := r.Int("type_id")
		switch r.Int("type") {
		case domain.RecipientPersonal:
			if err := im.store.SetColumn(ctx, domain.TableUserProfile, "recipient_id", typeID, newRecipientID); err != nil {
				return err
			}
		case domain.RecipientStream:
			im.streamRecipient[typeID] = newRecipientID
			if err := im.store.SetColumn(ctx, domain.TableStream, "recipient_id", typeID, newRecipientID); err != nil {
				return err
			}
		case domain.RecipientHuddle:
			if oldHuddle, ok := im.sess.HuddleForOldRecipient(oldIDs[i]); ok {
				im.huddleRecipient[oldHuddle] = newRecipientID
			}
		}
	}
	logger.Info("imported recipients", "count", len(recipients))
	return nil
}

// importSubscriptions materializes subscriptions. Group-DM membership is
// collected here, before the recipient reference is renamed, because the
// huddle hash can only be computed from the full post-remap member list.
// is_user_active reflects the destination's current user state, never the
// source's.
func (im *Importer) importSubscriptions(ctx context.Context, data domain.TableData) error {
	subs := data[domain.TableSubscription]
	if len(subs) == 0 {
		return nil
	}

	for _, s := range subs {
		oldRecipient := s.Int("recipient")
		oldHuddle, ok := im.sess.HuddleForOldRecipient(oldRecipient)
		if !ok {
			continue
		}
		if newUser, found := im.sess.MapID("user_profile", s.Int("user_profile")); found {
			im.huddleMembers[oldHuddle] = append(im.huddleMembers[oldHuddle], newUser)
		}
	}

	defloatify(domain.TableSubscription, subs)
	if err := im.remapForeignKeys(domain.TableSubscription, subs); err != nil {
		return err
	}

	userIDs := make([]int64, 0, len(subs))
	for _, s := range subs {
		userIDs = append(userIDs, s.Int("user_profile_id"))
	}
	active, err := im.store.ActiveUsers(ctx, userIDs)
	if err != nil {
		return err
	}
	for _, s := range subs {
		s["is_user_active"] = active[s.Int("user_profile_id")]
	}

	ids, err := im.store.AllocateIDs(ctx, domain.TableSubscription, len(subs))
	if err != nil {
		return err
	}
	if err := im.sess.AllocateFor("subscription", subs, ids); err != nil {
		return err
	}
	if err := im.store.BulkInsert(ctx, domain.TableSubscription, subs); err != nil {
		return err
	}
	logger.Info("imported subscriptions", "count", len(subs))
	return nil
}

// importHuddles materializes group DMs. Each group's canonical hash is
// recomputed from the remapped member list; the source hash is over old
// user IDs and would never match. The denormalized recipient pointer is
// backfilled after insert, like users and streams.
func (im *Importer) importHuddles(ctx context.Context, data domain.TableData) error {
	huddles := data[domain.TableHuddle]
	if len(huddles) == 0 {
		return nil
	}

	// IDs were allocated during recipient materialization; huddleOldIDs
	// is aligned with this slice.
	for i, h := range huddles {
		oldID := im.huddleOldIDs[i]
		delete(h, "recipient")
		delete(h, "recipient_id")

		members := im.huddleMembers[oldID]
		if len(members) == 0 {
			return fmt.Errorf("import: huddle %d has no subscribed members", oldID)
		}
		sort.Slice(members, func(a, b int) bool { return members[a] < members[b] })
		h["huddle_hash"] = domain.HuddleHash(members)
	}

	if err := im.store.BulkInsert(ctx, domain.TableHuddle, huddles); err != nil {
		return err
	}

	for i, h := range huddles {
		newRecipient, ok := im.huddleRecipient[im.huddleOldIDs[i]]
		if !ok {
			return fmt.Errorf("import: huddle %d has no materialized recipient", im.huddleOldIDs[i])
		}
		if err := im.store.SetColumn(ctx, domain.TableHuddle, "recipient_id", h.Int("id"), newRecipient); err != nil {
			return err
		}
	}
	logger.Info("imported huddles", "count", len(huddles))
	return nil
}
