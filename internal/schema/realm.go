package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/chatforge/realmsync/internal/domain"
)

// Temporary tables merged into zerver_recipient by concat-and-destroy.
// The three flavors of recipient are extracted separately (per stream, per
// user, per huddle) and only exist during traversal.
const (
	TmpStreamRecipient = "_stream_recipient"
	TmpUserRecipient   = "_user_recipient"
	TmpHuddleRecipient = "_huddle_recipient"
)

// Fetchers supplies the custom extraction callbacks the declarative graph
// cannot express. The exporter constructs them with store access.
type Fetchers struct {
	// UserProfiles populates zerver_userprofile plus the mirror-dummy
	// and cross-realm bot tables, applying the partial-export rules.
	UserProfiles CustomFetcher
	// HuddleRecipients populates _huddle_recipient from the recipient
	// IDs referenced by the already-fetched subscriptions.
	HuddleRecipients CustomFetcher
}

// BuildRealmConfig returns the validated root node for a full-realm
// export. Child registration order is the traversal order and is load
// bearing: a node may only depend on tables fetched by earlier nodes.
func BuildRealmConfig(f Fetchers) (*Node, error) {
	realm := &Node{Table: domain.TableRealm, IsSeeded: true}

	child(realm, &Node{Table: domain.TableClient, UseAll: true})

	child(realm, &Node{
		Table:        domain.TableCustomProfileField,
		NormalParent: realm,
		ParentFK:     "realm_id",
	})

	stream := child(realm, &Node{
		Table:        domain.TableStream,
		NormalParent: realm,
		ParentFK:     "realm_id",
		Exclude:      []string{"email_token"},
		PostProcess:  checkStreamSet,
	})
	child(stream, &Node{
		Table:        TmpStreamRecipient,
		DBTable:      domain.TableRecipient,
		NormalParent: stream,
		ParentFK:     "type_id",
		FilterArgs:   map[string]any{"type": domain.RecipientStream},
	})

	userGroup := child(realm, &Node{
		Table:        domain.TableUserGroup,
		NormalParent: realm,
		ParentFK:     "realm_id",
	})
	child(userGroup, &Node{
		Table:        domain.TableUserGroupMembership,
		NormalParent: userGroup,
		ParentFK:     "user_group_id",
	})

	user := child(realm, &Node{
		Table: domain.TableUserProfile,
		CustomTables: []string{
			domain.TableUserProfile,
			domain.TableUserProfileMirrorDummy,
			domain.TableUserProfileCrossRealm,
		},
		CustomFetch: f.UserProfiles,
	})

	allUserTables := []string{domain.TableUserProfile, domain.TableUserProfileMirrorDummy}

	child(user, &Node{
		Table:          TmpUserRecipient,
		DBTable:        domain.TableRecipient,
		NormalParent:   user,
		ParentFK:       "type_id",
		ParentIDTables: allUserTables,
		FilterArgs:     map[string]any{"type": domain.RecipientPersonal},
	})

	sub := child(user, &Node{
		Table:          domain.TableSubscription,
		NormalParent:   user,
		ParentFK:       "user_profile_id",
		ParentIDTables: allUserTables,
	})
	huddleRcpt := virtualChild(sub, &Node{
		Table:        TmpHuddleRecipient,
		CustomTables: []string{TmpHuddleRecipient},
		CustomFetch:  f.HuddleRecipients,
	})
	virtualChild(huddleRcpt, &Node{
		Table:         domain.TableHuddle,
		IDSourceTable: TmpHuddleRecipient,
		IDSourceField: "type_id",
		SourceFilter: func(r domain.Record) bool {
			return r.Int("type") == domain.RecipientHuddle
		},
	})

	// Per-user auxiliary tables.
	for _, t := range []struct {
		table string
		fk    string
	}{
		{domain.TableAlertWord, "user_profile_id"},
		{domain.TableUserHotspot, "user_id"},
		{domain.TableMutedTopic, "user_profile_id"},
		{domain.TableMutedUser, "user_profile_id"},
		{domain.TableService, "user_profile_id"},
		{domain.TableBotStorageData, "bot_profile_id"},
		{domain.TableBotConfigData, "bot_profile_id"},
		{domain.TableUserPresence, "user_profile_id"},
		{domain.TableUserActivity, "user_profile_id"},
		{domain.TableUserActivityInterval, "user_profile_id"},
		{domain.TableCustomProfileFieldValue, "user_profile_id"},
		{domain.TableReaction, "user_profile_id"},
		{domain.TableUserStatus, "user_profile_id"},
		{domain.TableScheduledMessage, "sender_id"},
	} {
		child(user, &Node{
			Table:          t.table,
			NormalParent:   user,
			ParentFK:       t.fk,
			ParentIDTables: allUserTables,
		})
	}

	// Canonical recipient table, merged once all three flavors exist.
	child(realm, &Node{
		Table: domain.TableRecipient,
		ConcatAndDestroy: []string{
			TmpUserRecipient,
			TmpStreamRecipient,
			TmpHuddleRecipient,
		},
	})

	// Per-realm auxiliary tables.
	for _, t := range []string{
		domain.TableDefaultStream,
		domain.TableRealmEmoji,
		domain.TableRealmDomain,
		domain.TableRealmFilter,
		domain.TableRealmPlayground,
		domain.TableRealmAuthMethod,
		domain.TableRealmUserDefault,
		domain.TableRealmAuditLog,
	} {
		child(realm, &Node{Table: t, NormalParent: realm, ParentFK: "realm_id"})
	}

	if err := Validate(realm); err != nil {
		return nil, err
	}
	return realm, nil
}

// checkStreamSet verifies the exported stream names exactly match the live
// stream set for the realm. Skipped for partial exports, where excluding
// streams is by design. A mismatch otherwise means the config graph has
// drifted from the schema and the export cannot be trusted.
func checkStreamSet(ctx context.Context, resp domain.TableData, ec *Context) error {
	if ec.IsPartial() {
		return nil
	}

	live, err := ec.Source.FetchByFK(ctx, domain.TableStream, "realm_id", []int64{ec.RealmID}, nil)
	if err != nil {
		return fmt.Errorf("stream sanity check: %w", err)
	}

	liveNames := streamNames(live)
	exportedNames := streamNames(resp[domain.TableStream])
	if len(liveNames) != len(exportedNames) {
		return fmt.Errorf("exported stream set %v != live stream set %v", exportedNames, liveNames)
	}
	for i := range liveNames {
		if liveNames[i] != exportedNames[i] {
			return fmt.Errorf("exported stream set %v != live stream set %v", exportedNames, liveNames)
		}
	}
	return nil
}

// CanonicalTable maps traversal-only table names to the relation whose
// column conventions (date and foreign-key registries) apply to their rows.
func CanonicalTable(table string) string {
	switch table {
	case domain.TableUserProfileMirrorDummy, domain.TableUserProfileCrossRealm:
		return domain.TableUserProfile
	case TmpStreamRecipient, TmpUserRecipient, TmpHuddleRecipient:
		return domain.TableRecipient
	}
	return table
}

func streamNames(records []domain.Record) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Str("name"))
	}
	sort.Strings(names)
	return names
}
