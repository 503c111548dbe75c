package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/schema"
)

// jsonUnmarshal decodes with UseNumber so primary keys survive as exact
// integers instead of float64.
func jsonUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// preNormalize folds the export's traversal-only table split back into the
// canonical shape: mirror-dummy users rejoin the main user table, and the
// denormalized recipient pointer columns on users and streams are dropped.
// Those pointers are backfilled structurally after recipient
// materialization; copying them would carry source-realm IDs.
func preNormalize(data domain.TableData) {
	users := data[domain.TableUserProfile]
	users = append(users, data[domain.TableUserProfileMirrorDummy]...)
	domain.SortByID(users)
	data[domain.TableUserProfile] = users
	delete(data, domain.TableUserProfileMirrorDummy)

	for _, t := range []string{domain.TableUserProfile, domain.TableStream} {
		for _, r := range data[t] {
			delete(r, "recipient")
			delete(r, "recipient_id")
		}
	}
}

// defloatify converts the registered datetime columns of a table back from
// their persisted float form to time.Time, which the driver binds as a
// proper timestamp.
func defloatify(table string, records []domain.Record) {
	fields, ok := schema.DateFields[table]
	if !ok {
		return
	}
	for _, r := range records {
		for _, f := range fields {
			v, ok := r[f]
			if !ok || v == nil {
				continue
			}
			ts := domain.Record{f: v}.Float(f)
			sec := int64(ts)
			nsec := int64((ts - float64(sec)) * float64(time.Second))
			r[f] = time.Unix(sec, nsec).UTC()
		}
	}
}

// fkCategory maps an exported foreign-key base name to the remapper
// category its IDs live in. A registered foreign key missing here is a
// latent bug and fails the import.
var fkCategory = map[string]string{
	"realm": "realm",

	"creator":       "user_profile",
	"sender":        "user_profile",
	"user_profile":  "user_profile",
	"acting_user":   "user_profile",
	"modified_user": "user_profile",
	"owner":         "user_profile",
	"author":        "user_profile",
	"bot_owner":     "user_profile",
	"muted_user":    "user_profile",
	"user":          "user_profile",
	"bot_profile":   "user_profile",

	"recipient": "recipient",

	"stream":                         "stream",
	"notifications_stream":           "stream",
	"signup_notifications_stream":    "stream",
	"moderation_request_channel":     "stream",
	"default_sending_stream":         "stream",
	"default_events_register_stream": "stream",
	"modified_stream":                "stream",

	"sending_client": "client",
	"client":         "client",

	"message":          "message",
	"scheduledmessage": "scheduledmessage",
	"attachment":       "attachment",

	"user_group":                       "usergroup",
	"can_mention_group":                "usergroup",
	"can_create_public_channel_group":  "usergroup",
	"can_create_private_channel_group": "usergroup",
	"can_administer_channel_group":     "usergroup",

	"field": "customprofilefield",
}

// remapForeignKeys rewrites every registered foreign key of the table
// through the session, renaming the columns back to their "_id" form.
func (im *Importer) remapForeignKeys(table string, records []domain.Record) error {
	for _, f := range schema.ForeignKeys[table] {
		cat, ok := fkCategory[f]
		if !ok {
			return fmt.Errorf("import: foreign key %s.%s has no remap category", table, f)
		}
		if err := im.sess.RemapForeignKey(records, f, cat); err != nil {
			return err
		}
	}
	return nil
}

// allocateAndInsert is the standard materialization path for tables with
// no special handling: fix dates, remap foreign keys, allocate fresh
// primary keys into the session, bulk insert.
func (im *Importer) allocateAndInsert(ctx context.Context, table, category string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	defloatify(table, records)
	if err := im.remapForeignKeys(table, records); err != nil {
		return err
	}
	ids, err := im.store.AllocateIDs(ctx, table, len(records))
	if err != nil {
		return err
	}
	if err := im.sess.AllocateFor(category, records, ids); err != nil {
		return err
	}
	return im.store.BulkInsert(ctx, table, records)
}
