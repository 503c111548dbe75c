package importer

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/export"
)

// TEST HELPERS

func writeChunk(t *testing.T, dir string, n int) {
	t.Helper()
	require.NoError(t, os.WriteFile(export.ChunkFile(dir, n), []byte(`{}`), 0o644))
}

func writePartialChunk(t *testing.T, dir string, n int) {
	t.Helper()
	require.NoError(t, os.WriteFile(export.ChunkFile(dir, n)+".partial", []byte(`{}`), 0o644))
}

func newTestImporter(t *testing.T) *Importer {
	t.Helper()
	return New(nil, nil, Options{Subdomain: "dest"})
}

func TestRewriteMessageUploadPaths(t *testing.T) {
	im := newTestImporter(t)
	im.sess.SetPath("2/ab/old.png", "9/cd/new.png")
	rw := im.newContentRewriter()

	m := domain.Record{
		"content":          "see [img](/user_uploads/2/ab/old.png)",
		"rendered_content": `<a href="/user_uploads/2/ab/old.png">img</a>`,
	}
	rw.rewriteMessage(m)

	assert.Equal(t, "see [img](/user_uploads/9/cd/new.png)", m.Str("content"))
	assert.Equal(t, `<a href="/user_uploads/9/cd/new.png">img</a>`, m.Str("rendered_content"))
}

func TestRewriteMessageMentions(t *testing.T) {
	im := newTestImporter(t)
	require.NoError(t, im.sess.UpdateIDMap("user_profile", 7, 70))
	require.NoError(t, im.sess.UpdateIDMap("stream", 3, 33))
	require.NoError(t, im.sess.UpdateIDMap("usergroup", 4, 44))
	rw := im.newContentRewriter()

	m := domain.Record{
		"content": "@**Ada**",
		"rendered_content": `<span class="user-mention" data-user-id="7">@Ada</span>` +
			`<a data-stream-id="3">#general</a>` +
			`<span data-user-group-id="4">@ops</span>` +
			`<span data-user-id="999">@gone</span>`,
	}
	rw.rewriteMessage(m)

	rendered := m.Str("rendered_content")
	assert.Contains(t, rendered, `data-user-id="70"`)
	assert.Contains(t, rendered, `data-stream-id="33"`)
	assert.Contains(t, rendered, `data-user-group-id="44"`)
	// Unmapped IDs keep their source value rather than being mangled.
	assert.Contains(t, rendered, `data-user-id="999"`)
	assert.Contains(t, rendered, "@Ada", "display text survives the patch")
}

func TestRewriteMessageMissingRendering(t *testing.T) {
	im := newTestImporter(t)
	rw := im.newContentRewriter()

	m := domain.Record{"content": "a < b", "rendered_content": nil}
	rw.rewriteMessage(m)
	assert.Equal(t, "<p>a &lt; b</p>", m.Str("rendered_content"))

	m = domain.Record{"content": "plain", "rendered_content": ""}
	rw.rewriteMessage(m)
	assert.Equal(t, "<p>plain</p>", m.Str("rendered_content"))
}

func TestRemapEmojiCodes(t *testing.T) {
	im := newTestImporter(t)
	require.NoError(t, im.sess.UpdateIDMap("realmemoji", 5, 55))
	im.realmEmojiNames[55] = "party"

	records := []domain.Record{
		{"id": int64(1), "reaction_type": domain.EmojiTypeRealmEmoji, "emoji_code": "5", "emoji_name": "party"},
		{"id": int64(2), "reaction_type": domain.EmojiTypeUnicode, "emoji_code": "1f389", "emoji_name": "tada"},
	}

	require.NoError(t, im.remapEmojiCodes(domain.TableReaction, records))

	assert.Equal(t, "55", records[0].Str("emoji_code"))
	assert.Equal(t, "1f389", records[1].Str("emoji_code"), "unicode emoji are untouched")
}

func TestRemapEmojiCodesNameMismatch(t *testing.T) {
	im := newTestImporter(t)
	require.NoError(t, im.sess.UpdateIDMap("realmemoji", 5, 55))
	im.realmEmojiNames[55] = "party"

	records := []domain.Record{
		{"id": int64(1), "reaction_type": domain.EmojiTypeRealmEmoji, "emoji_code": "5", "emoji_name": "confetti"},
	}

	err := im.remapEmojiCodes(domain.TableReaction, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestRemapEmojiCodesUnknownEmoji(t *testing.T) {
	im := newTestImporter(t)

	records := []domain.Record{
		{"id": int64(1), "reaction_type": domain.EmojiTypeRealmEmoji, "emoji_code": "5", "emoji_name": "party"},
	}

	err := im.remapEmojiCodes(domain.TableReaction, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown realm emoji")
}

func TestRemapEmojiCodesMalformedCode(t *testing.T) {
	im := newTestImporter(t)

	records := []domain.Record{
		{"id": int64(1), "reaction_type": domain.EmojiTypeRealmEmoji, "emoji_code": "party", "emoji_name": "party"},
	}

	err := im.remapEmojiCodes(domain.TableReaction, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-numeric")
}

func TestRoleCounts(t *testing.T) {
	users := []domain.Record{
		{"role": domain.RoleRealmOwner},
		{"role": domain.RoleRealmAdmin},
		{"role": domain.RoleModerator},
		{"role": domain.RoleMember},
		{"role": domain.RoleGuest},
		{"role": int64(0)}, // unset role defaults to member
	}

	counts := roleCounts(users)

	assert.Equal(t, map[string]int{
		"realm_owner": 1,
		"realm_admin": 1,
		"moderator":   1,
		"member":      2,
		"guest":       1,
	}, counts)
}
