package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/schema"
)

// TEST HELPERS

// fakeUserSource serves a canned realm user list and system bot lookups.
type fakeUserSource struct {
	users []domain.Record
	bots  map[string]domain.Record
}

func (f *fakeUserSource) FetchByFK(ctx context.Context, table, fkField string, ids []int64, filter map[string]any) ([]domain.Record, error) {
	out := make([]domain.Record, len(f.users))
	for i, u := range f.users {
		out[i] = u.Clone()
	}
	return out, nil
}

func (f *fakeUserSource) SystemBotByEmail(ctx context.Context, email string) (domain.Record, bool, error) {
	bot, ok := f.bots[email]
	return bot, ok, nil
}

func realmUser(id int64, email string) domain.Record {
	return domain.Record{
		"id":              id,
		"email":           email,
		"is_active":       true,
		"is_mirror_dummy": false,
		"password":        "pbkdf2$x",
		"api_key":         "k" + email,
	}
}

func TestUserProfileFetcherFullExport(t *testing.T) {
	src := &fakeUserSource{users: []domain.Record{
		realmUser(1, "a@acme.test"),
		realmUser(2, "b@acme.test"),
	}}
	f := &userProfileFetcher{store: src}

	resp := domain.TableData{}
	ec := &schema.Context{RealmID: 7}
	require.NoError(t, f.FetchCustom(context.Background(), resp, ec))

	assert.Len(t, resp[domain.TableUserProfile], 2)
	assert.Empty(t, resp[domain.TableUserProfileMirrorDummy])
	for _, u := range resp[domain.TableUserProfile] {
		assert.Nil(t, u["password"])
		assert.Equal(t, "", u["api_key"])
	}
}

func TestUserProfileFetcherPartialExport(t *testing.T) {
	src := &fakeUserSource{users: []domain.Record{
		realmUser(1, "a@acme.test"),
		realmUser(2, "b@acme.test"),
		realmUser(3, "c@acme.test"),
	}}
	f := &userProfileFetcher{store: src}

	resp := domain.TableData{}
	ec := &schema.Context{
		RealmID:           7,
		ExportableUserIDs: map[int64]bool{2: true},
	}
	require.NoError(t, f.FetchCustom(context.Background(), resp, ec))

	live := resp[domain.TableUserProfile]
	require.Len(t, live, 1)
	assert.Equal(t, int64(2), live[0].Int("id"))

	dummies := resp[domain.TableUserProfileMirrorDummy]
	require.Len(t, dummies, 2)
	for _, d := range dummies {
		assert.NotEqual(t, int64(2), d.Int("id"))
		assert.Equal(t, false, d["is_active"])
		assert.Equal(t, true, d["is_mirror_dummy"])
		assert.Nil(t, d["password"])
		assert.Equal(t, "", d["api_key"])
		// The email survives so messages keep a resolvable sender.
		assert.NotEmpty(t, d.Str("email"))
	}
}

func TestUserProfileFetcherCrossRealmBots(t *testing.T) {
	src := &fakeUserSource{
		users: []domain.Record{realmUser(1, "a@acme.test")},
		bots: map[string]domain.Record{
			domain.EmailGatewayBotEmail: {"id": int64(90), "email": domain.EmailGatewayBotEmail},
		},
	}
	f := &userProfileFetcher{store: src}

	resp := domain.TableData{}
	require.NoError(t, f.FetchCustom(context.Background(), resp, &schema.Context{RealmID: 7}))

	bots := resp[domain.TableUserProfileCrossRealm]
	require.Len(t, bots, 1)
	assert.Equal(t, int64(90), bots[0].Int("id"))
	assert.Equal(t, domain.EmailGatewayBotEmail, bots[0].Str("email"))
}
