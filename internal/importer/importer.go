// Package importer materializes a previously exported realm into a fresh
// destination realm. Phases run in a strict order because each phase's
// foreign-key remaps depend on earlier phases having fully populated the
// session's ID map. The pipeline is not one transaction: a failed run
// leaves a deactivated, partially imported realm that must be discarded.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/chatforge/realmsync/internal/blob"
	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/export"
	"github.com/chatforge/realmsync/internal/pkg/logger"
	"github.com/chatforge/realmsync/internal/session"
	"github.com/chatforge/realmsync/internal/store"
)

// Announcer notifies an external push registration service that a realm
// now exists. Failures are logged, never fatal.
type Announcer interface {
	AnnounceRealm(ctx context.Context, realmID int64, subdomain string) error
}

// Options tunes one import run.
type Options struct {
	// Subdomain becomes the new realm's string_id and display name
	// override.
	Subdomain string
	// ThumbnailWorkers bounds the avatar thumbnail pool.
	ThumbnailWorkers int
	// BillingEnabled selects the limited plan instead of self hosted.
	BillingEnabled bool
	// AvatarTransfer overrides the blob transfer used for avatars, for
	// deployments keeping avatars in a separate bucket. Defaults to the
	// main transfer.
	AvatarTransfer *blob.Transfer
	// Announcer may be nil when no push bouncer is configured.
	Announcer Announcer
}

// Importer drives one import run.
type Importer struct {
	store *store.Store
	sess  *session.Session
	blobs *blob.Transfer
	opts  Options

	newRealmID int64
	oldRealmID int64
	// sourceWasDeactivated preserves the exported realm's own state so
	// finalize restores it instead of blindly activating.
	sourceWasDeactivated bool
	// systemGroups maps role group names to their new IDs, for
	// synthesizing role-based memberships.
	systemGroups map[string]int64

	// huddleOldIDs remembers, per huddle row, the source ID after the
	// row's own ID has been rewritten during recipient materialization.
	huddleOldIDs []int64
	// huddleMembers collects post-remap member IDs per old huddle ID.
	huddleMembers map[int64][]int64
	// huddleRecipient maps old huddle ID to its new recipient row ID.
	huddleRecipient map[int64]int64
	// streamRecipient maps new stream ID to its new recipient row ID,
	// for the first-message-ID recomputation.
	streamRecipient map[int64]int64
	// realmEmojiNames maps new realm-emoji ID to its name, for the
	// reaction and status cross-checks.
	realmEmojiNames map[int64]string
	// systemBotOldIDs marks source user IDs that resolved to shared
	// system bots, so analytics can exclude them.
	systemBotOldIDs map[int64]bool
}

// New creates an importer writing rows through st and blobs through bt.
func New(st *store.Store, bt *blob.Transfer, opts Options) *Importer {
	if opts.ThumbnailWorkers <= 0 {
		opts.ThumbnailWorkers = 1
	}
	return &Importer{
		store:           st,
		sess:            session.New(),
		blobs:           bt,
		opts:            opts,
		systemGroups:    make(map[string]int64),
		huddleMembers:   make(map[int64][]int64),
		huddleRecipient: make(map[int64]int64),
		streamRecipient: make(map[int64]int64),
		realmEmojiNames: make(map[int64]string),
		systemBotOldIDs: make(map[int64]bool),
	}
}

// Run imports the export at dir into a new realm on the destination.
func (im *Importer) Run(ctx context.Context, dir string) error {
	if im.opts.Subdomain == "" {
		return fmt.Errorf("import: destination subdomain is required")
	}
	if _, exists, err := im.store.RealmIDBySubdomain(ctx, im.opts.Subdomain); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("import: subdomain %q already exists", im.opts.Subdomain)
	}

	data := domain.TableData{}
	if err := readJSON(filepath.Join(dir, export.RealmFile), &data); err != nil {
		return err
	}

	chunks, err := countChunks(dir)
	if err != nil {
		return err
	}
	logger.Info("starting import",
		"dir", dir, "subdomain", im.opts.Subdomain,
		"tables", len(data), "message_chunks", chunks)

	preNormalize(data)

	if err := im.importClients(ctx, data); err != nil {
		return err
	}
	if err := im.remapSystemBots(ctx, data); err != nil {
		return err
	}
	if err := im.allocateCoreCluster(ctx, data, dir, chunks); err != nil {
		return err
	}
	if err := im.importRealm(ctx, data); err != nil {
		return err
	}
	if err := im.importUserGroups(ctx, data); err != nil {
		return err
	}
	if err := im.importStreams(ctx, data); err != nil {
		return err
	}
	if err := im.importUserProfiles(ctx, data); err != nil {
		return err
	}
	if err := im.importRealmAux(ctx, data); err != nil {
		return err
	}
	if err := im.importRecipients(ctx, data); err != nil {
		return err
	}
	if err := im.importSubscriptions(ctx, data); err != nil {
		return err
	}
	if err := im.importAuditLog(ctx, data); err != nil {
		return err
	}
	if err := im.importHuddles(ctx, data); err != nil {
		return err
	}
	if err := im.importUserAux(ctx, data); err != nil {
		return err
	}
	if err := im.importBlobs(ctx, dir); err != nil {
		return err
	}
	if err := im.importMessages(ctx, dir, chunks); err != nil {
		return err
	}
	if err := im.importScheduledMessages(ctx, data); err != nil {
		return err
	}
	if err := im.importReactions(ctx, data); err != nil {
		return err
	}
	if err := im.recomputeFirstMessageIDs(ctx, data); err != nil {
		return err
	}
	if err := im.importUserStatus(ctx, data); err != nil {
		return err
	}
	if err := im.importAttachments(ctx, dir); err != nil {
		return err
	}
	if err := im.importAnalytics(ctx, dir); err != nil {
		return err
	}
	if err := im.finalize(ctx, data); err != nil {
		return err
	}

	logger.Info("import complete",
		"realm_id", im.newRealmID, "subdomain", im.opts.Subdomain)
	return nil
}

// NewRealmID returns the destination realm's ID, valid once Run has
// passed core allocation.
func (im *Importer) NewRealmID() int64 { return im.newRealmID }

// chunkFilePattern matches the numbered message chunk files.
var chunkFilePattern = regexp.MustCompile(`^messages-\d{6,}\.json$`)

// countChunks counts the numbered message chunk files in dir, verifying
// the sequence is dense from 1 and contains no leftover .partial files. A
// chunk file beyond the dense range means a hole in the sequence, and a
// hole means silently dropped messages, so it fails the run.
func countChunks(dir string) (int, error) {
	count := 0
	for n := 1; ; n++ {
		if _, err := os.Stat(export.ChunkFile(dir, n)); err != nil {
			if !os.IsNotExist(err) {
				return 0, err
			}
			if _, perr := os.Stat(export.ChunkFile(dir, n) + ".partial"); perr == nil {
				return 0, fmt.Errorf("import: chunk %d is still partial, export did not finish", n)
			}
			count = n - 1
			break
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, e := range entries {
		if chunkFilePattern.MatchString(e.Name()) {
			total++
		}
	}
	if total != count {
		return 0, fmt.Errorf("import: %d message chunk files present but only chunks 1..%d are contiguous", total, count)
	}
	return count, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := jsonUnmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
