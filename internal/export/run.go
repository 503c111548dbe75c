package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
	"github.com/chatforge/realmsync/internal/schema"
)

// RunResult is what a realm export produced, for the caller to feed the
// blob transfer phase.
type RunResult struct {
	// Tables is the realm.json payload.
	Tables domain.TableData
	// Attachments are the exported attachment rows, already filtered to
	// claimed attachments, in export form.
	Attachments []domain.Record
	// Chunks is the number of message chunk files written.
	Chunks int
	// Messages is the total number of exported messages.
	Messages int
}

// RunRealmExport executes a full or restricted realm export into dir:
// realm.json, the message chunk files, attachment.json and analytics.json.
// Blob directories are written separately by the blob package, which needs
// the returned table data to know what to copy.
//
// exportableUserIDs, when non-empty, restricts the export to the given
// users; consentMessageID, when non-zero, adds every user who reacted to
// that message. Either alone or both together produce a partial export in
// which everyone else becomes a mirror dummy.
func (e *Exporter) RunRealmExport(ctx context.Context, dir string, realmID, consentMessageID int64, exportableUserIDs []int64) (*RunResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	realm, ok, err := e.store.FetchRealm(ctx, realmID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("realm %d does not exist", realmID)
	}

	ec := &schema.Context{
		RealmID: realmID,
		Realm:   realm,
		Source:  e.store,
	}
	if len(exportableUserIDs) > 0 {
		ec.ExportableUserIDs = toSet(exportableUserIDs)
		logger.Info("restricted export", "exportable_users", len(exportableUserIDs))
	}
	if consentMessageID != 0 {
		consenting, err := e.store.ReactingUserIDs(ctx, consentMessageID)
		if err != nil {
			return nil, err
		}
		if len(consenting) == 0 && ec.ExportableUserIDs == nil {
			logger.Warn("consent message has no reactions, exporting no user content",
				"message_id", consentMessageID)
		}
		ec.ConsentMessageID = consentMessageID
		if ec.ExportableUserIDs == nil {
			ec.ExportableUserIDs = make(map[int64]bool, len(consenting))
		}
		for _, id := range consenting {
			ec.ExportableUserIDs[id] = true
		}
		logger.Info("consented export", "consenting_users", len(consenting))
	}

	cfg, err := schema.BuildRealmConfig(schema.Fetchers{
		UserProfiles:     &userProfileFetcher{store: e.store},
		HuddleRecipients: &huddleRecipientFetcher{store: e.store},
	})
	if err != nil {
		return nil, err
	}

	resp := domain.TableData{}
	if err := e.ExportFromConfig(ctx, resp, cfg, ec); err != nil {
		return nil, err
	}
	warnMissingTables(resp)

	chunks, messageIDs, err := e.exportMessages(ctx, dir, resp, ec)
	if err != nil {
		return nil, err
	}
	if err := e.FinalizeUserMessages(ctx, dir, chunks, ec); err != nil {
		return nil, err
	}

	scheduledIDs := domain.IDs(resp[domain.TableScheduledMessage], "id")
	attachments, err := e.exportAttachments(ctx, dir, ec, messageIDs, scheduledIDs)
	if err != nil {
		return nil, err
	}
	if err := e.exportAnalytics(ctx, dir, ec); err != nil {
		return nil, err
	}

	if err := writeJSONFile(filepath.Join(dir, RealmFile), resp); err != nil {
		return nil, err
	}
	logger.Info("realm export complete",
		"realm_id", realmID, "dir", dir,
		"tables", len(resp), "message_chunks", chunks, "messages", len(messageIDs))
	return &RunResult{
		Tables:      resp,
		Attachments: attachments,
		Chunks:      chunks,
		Messages:    len(messageIDs),
	}, nil
}

// RunUserExport executes a single-user export into dir, producing
// user.json with the user row, their subscriptions, and the recipients
// and streams those subscriptions resolve to.
func (e *Exporter) RunUserExport(ctx context.Context, dir string, userID int64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	rows, err := e.store.FetchByIDs(ctx, domain.TableUserProfile, []int64{userID})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("user %d does not exist", userID)
	}
	user := rows[0]
	stripCredentials(user)

	cfg, err := schema.BuildUserConfig()
	if err != nil {
		return err
	}

	// The seed record slot is generic: for a user export it carries the
	// user row rather than a realm row.
	ec := &schema.Context{
		RealmID: user.Int("realm_id"),
		Realm:   user,
		Source:  e.store,
	}
	resp := domain.TableData{}
	if err := e.ExportFromConfig(ctx, resp, cfg, ec); err != nil {
		return err
	}

	if err := writeJSONFile(filepath.Join(dir, UserFile), resp); err != nil {
		return err
	}
	logger.Info("user export complete", "user_id", userID, "dir", dir)
	return nil
}

// ReadUserIDFile parses an operator-supplied exportable-user list: one
// decimal user ID per line, with blank lines and #-comments skipped.
func ReadUserIDFile(path string) ([]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad user id %q", path, i+1, line)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
