package importer

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/export"
	"github.com/chatforge/realmsync/internal/pkg/logger"
)

// importClients deduplicates client rows by name against the destination's
// shared client table. Nothing is blindly re-inserted.
func (im *Importer) importClients(ctx context.Context, data domain.TableData) error {
	for _, c := range data[domain.TableClient] {
		newID, err := im.store.GetOrCreateClient(ctx, c.Str("name"))
		if err != nil {
			return err
		}
		if err := im.sess.UpdateIDMap("client", c.Int("id"), newID); err != nil {
			return err
		}
	}
	delete(data, domain.TableClient)
	return nil
}

// remapSystemBots resolves the export's cross-realm bot rows to the
// destination server's own system bots. The bots are never re-created;
// references to them remap to existing identities, and a bot the
// destination does not know stays unmapped, passing references through.
func (im *Importer) remapSystemBots(ctx context.Context, data domain.TableData) error {
	for _, b := range data[domain.TableUserProfileCrossRealm] {
		im.systemBotOldIDs[b.Int("id")] = true
		email := b.Str("delivery_email")
		if email == "" {
			email = b.Str("email")
		}
		bot, ok, err := im.store.SystemBotByEmail(ctx, email)
		if err != nil {
			return err
		}
		if !ok {
			logger.Warn("destination has no system bot, references pass through",
				"email", email, "old_id", b.Int("id"))
			continue
		}
		if err := im.sess.UpdateIDMap("user_profile", b.Int("id"), bot.Int("id")); err != nil {
			return err
		}
	}
	delete(data, domain.TableUserProfileCrossRealm)
	return nil
}

// allocateCoreCluster pre-allocates primary keys for the mutually
// referential core tables (realm, stream, user profile, user group)
// before any of their rows are rewritten, which is what breaks the
// circular foreign keys between them. Message IDs are allocated here too:
// a user's last_active_message_id self-reference must be remappable
// before the user rows are inserted.
func (im *Importer) allocateCoreCluster(ctx context.Context, data domain.TableData, dir string, chunks int) error {
	realms := data[domain.TableRealm]
	if len(realms) != 1 {
		return fmt.Errorf("import: expected exactly one realm row, got %d", len(realms))
	}
	im.sourceWasDeactivated = realms[0].Bool("deactivated")
	im.oldRealmID = realms[0].Int("id")

	for _, core := range []struct {
		table    string
		category string
	}{
		{domain.TableRealm, "realm"},
		{domain.TableStream, "stream"},
		{domain.TableUserProfile, "user_profile"},
		{domain.TableUserGroup, "usergroup"},
	} {
		records := data[core.table]
		if len(records) == 0 {
			continue
		}
		ids, err := im.store.AllocateIDs(ctx, core.table, len(records))
		if err != nil {
			return err
		}
		if err := im.sess.AllocateFor(core.category, records, ids); err != nil {
			return err
		}
	}
	im.newRealmID = realms[0].Int("id")

	return im.allocateMessageIDs(ctx, dir, chunks)
}

// allocateMessageIDs scans every chunk file for message IDs and reserves
// the same count of fresh IDs, in file order. Export wrote the chunks in
// ascending ID order, so the new IDs ascend the same way.
func (im *Importer) allocateMessageIDs(ctx context.Context, dir string, chunks int) error {
	var oldIDs []int64
	for n := 1; n <= chunks; n++ {
		var payload struct {
			Messages []struct {
				ID int64 `json:"id"`
			} `json:"zerver_message"`
		}
		if err := readJSON(export.ChunkFile(dir, n), &payload); err != nil {
			return err
		}
		for _, m := range payload.Messages {
			oldIDs = append(oldIDs, m.ID)
		}
	}
	if len(oldIDs) == 0 {
		return nil
	}
	newIDs, err := im.store.AllocateIDs(ctx, domain.TableMessage, len(oldIDs))
	if err != nil {
		return err
	}
	for i, old := range oldIDs {
		if err := im.sess.UpdateIDMap("message", old, newIDs[i]); err != nil {
			return err
		}
	}
	logger.Info("allocated message ids", "count", len(oldIDs))
	return nil
}

// importRealm materializes the realm row, renamed to the destination
// subdomain and deactivated until finalize. Deactivation is what keeps a
// half-imported realm unreachable while the remaining phases run.
func (im *Importer) importRealm(ctx context.Context, data domain.TableData) error {
	realm := data[domain.TableRealm][0]
	defloatify(domain.TableRealm, data[domain.TableRealm])
	if err := im.remapForeignKeys(domain.TableRealm, data[domain.TableRealm]); err != nil {
		return err
	}

	realm["string_id"] = im.opts.Subdomain
	realm["name"] = im.opts.Subdomain
	realm["deactivated"] = true

	return im.store.WithTx(ctx, func(tx *sql.Tx) error {
		return im.store.BulkInsertTx(ctx, tx, domain.TableRealm, data[domain.TableRealm])
	})
}

// importUserGroups inserts the pre-allocated user group rows, or, when
// the source export carries none (third-party converters), creates the
// system role groups directly so role-based membership can still be
// synthesized.
func (im *Importer) importUserGroups(ctx context.Context, data domain.TableData) error {
	groups := data[domain.TableUserGroup]
	if len(groups) == 0 {
		return im.createSystemGroups(ctx)
	}
	defloatify(domain.TableUserGroup, groups)
	if err := im.remapForeignKeys(domain.TableUserGroup, groups); err != nil {
		return err
	}
	for _, g := range groups {
		if g.Bool("is_system_group") {
			im.systemGroups[g.Str("name")] = g.Int("id")
		}
	}
	return im.store.BulkInsert(ctx, domain.TableUserGroup, groups)
}

// createSystemGroups builds the five role groups from scratch.
func (im *Importer) createSystemGroups(ctx context.Context) error {
	names := []string{
		domain.GroupOwners, domain.GroupAdministrators,
		domain.GroupModerators, domain.GroupMembers, domain.GroupEveryone,
	}
	ids, err := im.store.AllocateIDs(ctx, domain.TableUserGroup, len(names))
	if err != nil {
		return err
	}
	records := make([]domain.Record, len(names))
	for i, name := range names {
		im.systemGroups[name] = ids[i]
		records[i] = domain.Record{
			"id":              ids[i],
			"realm_id":        im.newRealmID,
			"name":            name,
			"description":     "",
			"is_system_group": true,
		}
	}
	logger.Info("source export has no user groups, creating system groups")
	return im.store.BulkInsert(ctx, domain.TableUserGroup, records)
}

// importStreams inserts the pre-allocated stream rows. Streams from
// third-party exports may lack a rendered description; those get a
// minimal rendering here.
func (im *Importer) importStreams(ctx context.Context, data domain.TableData) error {
	streams := data[domain.TableStream]
	if len(streams) == 0 {
		return nil
	}
	defloatify(domain.TableStream, streams)
	if err := im.remapForeignKeys(domain.TableStream, streams); err != nil {
		return err
	}
	for _, s := range streams {
		if s.IsNull("rendered_description") || s.Str("rendered_description") == "" {
			s["rendered_description"] = "<p>" + html.EscapeString(s.Str("description")) + "</p>"
		}
	}
	return im.store.BulkInsert(ctx, domain.TableStream, streams)
}

// importUserProfiles inserts the pre-allocated user rows. Credentials
// never survive an import: passwords get the unusable sentinel and API
// keys are regenerated, so no account is reachable with source-realm
// secrets.
func (im *Importer) importUserProfiles(ctx context.Context, data domain.TableData) error {
	users := data[domain.TableUserProfile]
	if len(users) == 0 {
		return fmt.Errorf("import: export contains no users")
	}
	defloatify(domain.TableUserProfile, users)
	if err := im.remapForeignKeys(domain.TableUserProfile, users); err != nil {
		return err
	}

	for _, u := range users {
		if _, err := mail.ParseAddress(u.Str("delivery_email")); err != nil {
			return fmt.Errorf("import: user %d has invalid email %q: %w",
				u.Int("id"), u.Str("delivery_email"), err)
		}
		u["password"] = unusablePassword()
		u["api_key"] = freshAPIKey()

		if v, ok := u["last_active_message_id"]; ok && v != nil {
			if newID, found := im.sess.MapID("message", u.Int("last_active_message_id")); found {
				u["last_active_message_id"] = newID
			}
		}
	}
	return im.store.BulkInsert(ctx, domain.TableUserProfile, users)
}

// unusablePassword returns a sentinel no hasher will ever verify, in the
// "!<random>" convention.
func unusablePassword() string {
	return "!" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func freshAPIKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
