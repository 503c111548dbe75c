package export

import (
	"context"
	"fmt"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/pkg/logger"
	"github.com/chatforge/realmsync/internal/schema"
	"github.com/chatforge/realmsync/internal/store"
)

// userProfileSource is the store surface the user-profile fetcher needs.
type userProfileSource interface {
	FetchByFK(ctx context.Context, table, fkField string, ids []int64, filter map[string]any) ([]domain.Record, error)
	SystemBotByEmail(ctx context.Context, email string) (domain.Record, bool, error)
}

// userProfileFetcher populates the three user tables. Under a partial
// export, users outside the exportable set keep their referential identity
// but lose their live account data: they land in the mirror-dummy table,
// deactivated, with credentials stripped.
type userProfileFetcher struct {
	store userProfileSource
}

func (f *userProfileFetcher) FetchCustom(ctx context.Context, resp domain.TableData, ec *schema.Context) error {
	users, err := f.store.FetchByFK(ctx, domain.TableUserProfile, "realm_id", []int64{ec.RealmID}, nil)
	if err != nil {
		return err
	}

	var live, dummies []domain.Record
	for _, u := range users {
		if ec.ExportableUserIDs != nil && !ec.ExportableUserIDs[u.Int("id")] {
			dummies = append(dummies, toMirrorDummy(u))
			continue
		}
		stripCredentials(u)
		live = append(live, u)
	}
	resp[domain.TableUserProfile] = live
	resp[domain.TableUserProfileMirrorDummy] = dummies

	crossRealm, err := f.crossRealmBots(ctx)
	if err != nil {
		return err
	}
	resp[domain.TableUserProfileCrossRealm] = crossRealm
	return nil
}

// crossRealmBots records the identity of every well-known system bot so
// the importer can remap references onto the destination server's own
// bots.
func (f *userProfileFetcher) crossRealmBots(ctx context.Context) ([]domain.Record, error) {
	var out []domain.Record
	for _, email := range domain.CrossRealmBotEmails {
		bot, ok, err := f.store.SystemBotByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if !ok {
			logger.Warn("system bot not provisioned on source server", "bot_email", email)
			continue
		}
		out = append(out, domain.Record{"id": bot.Int("id"), "email": bot.Str("email")})
	}
	return out, nil
}

// toMirrorDummy converts a live user row into the anonymization-eligible
// placeholder form. The email survives (messages reference the user); the
// account itself becomes unusable.
func toMirrorDummy(u domain.Record) domain.Record {
	d := u.Clone()
	d["is_active"] = false
	d["is_mirror_dummy"] = true
	stripCredentials(d)
	return d
}

// stripCredentials clears secrets that must never leave the source server.
func stripCredentials(u domain.Record) {
	u["password"] = nil
	u["api_key"] = ""
}

// huddleRecipientFetcher resolves the huddle-type recipients referenced by
// the already-exported subscriptions. Direct realm filtering is impossible
// here: huddles have no realm column, so membership is derived through
// subscriptions.
type huddleRecipientFetcher struct {
	store *store.Store
}

func (f *huddleRecipientFetcher) FetchCustom(ctx context.Context, resp domain.TableData, ec *schema.Context) error {
	subs, ok := resp[domain.TableSubscription]
	if !ok {
		return fmt.Errorf("huddle recipient fetch ran before subscriptions were exported")
	}

	seen := map[int64]bool{}
	var recipientIDs []int64
	for _, s := range subs {
		id := s.Int("recipient")
		if !seen[id] {
			seen[id] = true
			recipientIDs = append(recipientIDs, id)
		}
	}

	recipients, err := f.store.FetchByIDs(ctx, domain.TableRecipient, recipientIDs)
	if err != nil {
		return err
	}

	var huddleRcpts []domain.Record
	for _, r := range recipients {
		if r.Int("type") == domain.RecipientHuddle {
			huddleRcpts = append(huddleRcpts, r)
		}
	}
	resp[schema.TmpHuddleRecipient] = huddleRcpts
	return nil
}
