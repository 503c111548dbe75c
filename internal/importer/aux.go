package importer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// allowedLimitedAuthMethods are the authentication backends available on
// the limited plan. Other method rows are pruned on import when billing
// is enabled.
var allowedLimitedAuthMethods = map[string]bool{
	"Email":  true,
	"Google": true,
	"GitHub": true,
}

// importRealmAux materializes the simple per-realm tables. Realm emoji
// names are cached for the reaction and status cross-checks later.
func (im *Importer) importRealmAux(ctx context.Context, data domain.TableData) error {
	if err := im.allocateAndInsert(ctx, domain.TableDefaultStream, "defaultstream", data[domain.TableDefaultStream]); err != nil {
		return err
	}

	emoji := data[domain.TableRealmEmoji]
	if err := im.allocateAndInsert(ctx, domain.TableRealmEmoji, "realmemoji", emoji); err != nil {
		return err
	}
	for _, e := range emoji {
		im.realmEmojiNames[e.Int("id")] = e.Str("name")
	}

	for _, t := range []struct {
		table    string
		category string
	}{
		{domain.TableRealmDomain, "realmdomain"},
		{domain.TableRealmFilter, "realmfilter"},
		{domain.TableRealmPlayground, "realmplayground"},
	} {
		if err := im.allocateAndInsert(ctx, t.table, t.category, data[t.table]); err != nil {
			return err
		}
	}

	authMethods := data[domain.TableRealmAuthMethod]
	if im.opts.BillingEnabled {
		kept := authMethods[:0]
		for _, m := range authMethods {
			if allowedLimitedAuthMethods[m.Str("name")] {
				kept = append(kept, m)
			} else {
				logger.Info("pruning auth method not available on this plan",
					"method", m.Str("name"))
			}
		}
		authMethods = kept
	}
	if err := im.allocateAndInsert(ctx, domain.TableRealmAuthMethod, "realmauthmethod", authMethods); err != nil {
		return err
	}

	defaults := data[domain.TableRealmUserDefault]
	if len(defaults) == 0 {
		// Third-party exports often lack this table; the realm still
		// needs one defaults row.
		defaults = []domain.Record{{"id": int64(0), "realm": im.oldRealmID}}
	}
	return im.allocateAndInsert(ctx, domain.TableRealmUserDefault, "realmuserdefault", defaults)
}

// importUserAux materializes the remaining per-user tables. Webhook bot
// tokens are secrets and never survive an import; user-reference custom
// profile values get their embedded ID lists remapped element-wise.
func (im *Importer) importUserAux(ctx context.Context, data domain.TableData) error {
	// Captured before the field table's IDs are rewritten: the value
	// rows still reference fields by their source IDs.
	userFields := make(map[int64]bool)
	for _, f := range data[domain.TableCustomProfileField] {
		if f.Int("field_type") == domain.FieldTypeUser {
			userFields[f.Int("id")] = true
		}
	}

	memberships := data[domain.TableUserGroupMembership]
	if len(memberships) == 0 {
		if err := im.synthesizeRoleMemberships(ctx, data); err != nil {
			return err
		}
	} else {
		if err := im.allocateAndInsert(ctx, domain.TableUserGroupMembership, "usergroupmembership", memberships); err != nil {
			return err
		}
	}

	services := data[domain.TableService]
	for _, s := range services {
		s["token"] = freshAPIKey()
	}
	if err := im.allocateAndInsert(ctx, domain.TableService, "service", services); err != nil {
		return err
	}

	for _, t := range []struct {
		table    string
		category string
	}{
		{domain.TableAlertWord, "alertword"},
		{domain.TableUserHotspot, "userhotspot"},
		{domain.TableMutedTopic, "mutedtopic"},
		{domain.TableMutedUser, "muteduser"},
		{domain.TableBotStorageData, "botstoragedata"},
		{domain.TableBotConfigData, "botconfigdata"},
		{domain.TableUserPresence, "userpresence"},
		{domain.TableUserActivity, "useractivity"},
		{domain.TableUserActivityInterval, "useractivityinterval"},
		{domain.TableCustomProfileField, "customprofilefield"},
	} {
		if err := im.allocateAndInsert(ctx, t.table, t.category, data[t.table]); err != nil {
			return err
		}
	}

	values := data[domain.TableCustomProfileFieldValue]
	if err := im.remapUserFieldValues(userFields, values); err != nil {
		return err
	}
	return im.allocateAndInsert(ctx, domain.TableCustomProfileFieldValue, "customprofilefieldvalue", values)
}

// remapUserFieldValues rewrites the embedded user-ID lists of
// user-reference custom profile values. The value column is a JSON array
// serialized into text, so each list is unpacked into a scratch record and
// run through the session's element-wise remapper before reserialization.
func (im *Importer) remapUserFieldValues(userFields map[int64]bool, values []domain.Record) error {
	if len(userFields) == 0 {
		return nil
	}

	for _, v := range values {
		if !userFields[v.Int("field")] {
			continue
		}
		var ids []int64
		if err := json.Unmarshal([]byte(v.Str("value")), &ids); err != nil {
			return fmt.Errorf("import: malformed user field value %q: %w", v.Str("value"), err)
		}
		scratch := domain.Record{"user": ids}
		if err := im.sess.RemapForeignKeyMany([]domain.Record{scratch}, "user", "user_profile"); err != nil {
			return err
		}
		out, err := json.Marshal(scratch.IntList("user_id"))
		if err != nil {
			return err
		}
		v["value"] = string(out)
	}
	return nil
}

// synthesizeRoleMemberships creates one system-group membership per user
// based on role, for exports that predate explicit group membership.
func (im *Importer) synthesizeRoleMemberships(ctx context.Context, data domain.TableData) error {
	users := data[domain.TableUserProfile]
	var records []domain.Record
	for _, u := range users {
		group, ok := domain.RoleToSystemGroup[u.Int("role")]
		if !ok {
			group = domain.GroupMembers
		}
		groupID, ok := im.systemGroups[group]
		if !ok {
			logger.Warn("no system group for role, skipping membership",
				"role", u.Int("role"), "user_id", u.Int("id"))
			continue
		}
		records = append(records, domain.Record{
			"user_profile_id": u.Int("id"),
			"user_group_id":   groupID,
		})
	}
	if len(records) == 0 {
		return nil
	}
	ids, err := im.store.AllocateIDs(ctx, domain.TableUserGroupMembership, len(records))
	if err != nil {
		return err
	}
	for i, r := range records {
		r["id"] = ids[i]
	}
	logger.Info("synthesized role memberships", "count", len(records))
	return im.store.BulkInsert(ctx, domain.TableUserGroupMembership, records)
}
