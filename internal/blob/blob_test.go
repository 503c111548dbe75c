package blob

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/realmsync/internal/domain"
)

func TestLocalBackendRoundTrip(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	ctx := context.Background()

	meta := ObjectMeta{UserMeta: map[string]string{MetaUserProfileID: "7"}}
	require.NoError(t, b.Store(ctx, "2/abc/file.png", []byte("bytes"), meta))

	data, got, err := b.Fetch(ctx, "2/abc/file.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), data)
	assert.Equal(t, "7", got.UserMeta[MetaUserProfileID])
	assert.Equal(t, "image/png", got.ContentType)
	assert.Equal(t, int64(5), got.Size)
}

func TestLocalBackendList(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	ctx := context.Background()

	require.NoError(t, b.Store(ctx, "2/b.txt", []byte("x"), ObjectMeta{}))
	require.NoError(t, b.Store(ctx, "2/a.txt", []byte("x"),
		ObjectMeta{UserMeta: map[string]string{"k": "v"}}))
	require.NoError(t, b.Store(ctx, "3/c.txt", []byte("x"), ObjectMeta{}))

	keys, err := b.List(ctx, "2/")
	require.NoError(t, err)

	// Lexical order, other prefixes and metadata sidecars excluded.
	assert.Equal(t, []string{"2/a.txt", "2/b.txt"}, keys)
}

func TestLocalBackendListMissingRoot(t *testing.T) {
	b := NewLocalBackend(filepath.Join(t.TempDir(), "nope"))

	keys, err := b.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAvatarPaths(t *testing.T) {
	base := AvatarBasePath(2, 7)

	// Deterministic, realm prefixed, hex hash.
	assert.Equal(t, base, AvatarBasePath(2, 7))
	assert.NotEqual(t, base, AvatarBasePath(2, 8))
	assert.Regexp(t, `^2/[0-9a-f]{40}$`, base)
	assert.Equal(t, base+".original", AvatarOriginalPath(2, 7))
	assert.Equal(t, base+"-medium.png", AvatarMediumPath(2, 7))
}

func TestRewriteRealmPrefix(t *testing.T) {
	assert.Equal(t, "9/abc/file.png", rewriteRealmPrefix("2/abc/file.png", 9))
	assert.Equal(t, "9/bare", rewriteRealmPrefix("bare", 9))
}

func TestEmojiAndIconPaths(t *testing.T) {
	assert.Equal(t, "2/emoji/images/party.png", EmojiPath(2, "party.png"))
	assert.Equal(t, "2/realm/", RealmIconPrefix(2))
}

func TestAvatarOwner(t *testing.T) {
	users := map[int64]bool{7: true}

	id, err := avatarOwner("k", ObjectMeta{UserMeta: map[string]string{MetaUserProfileID: "7"}}, users, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	// The gateway bot may own avatars recorded under a foreign realm.
	id, err = avatarOwner("k", ObjectMeta{UserMeta: map[string]string{MetaUserProfileID: "99"}}, users, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)

	_, err = avatarOwner("k", ObjectMeta{}, users, 99)
	require.Error(t, err)

	_, err = avatarOwner("k", ObjectMeta{UserMeta: map[string]string{MetaUserProfileID: "bad"}}, users, 99)
	require.Error(t, err)

	_, err = avatarOwner("k", ObjectMeta{UserMeta: map[string]string{MetaUserProfileID: "8"}}, users, 99)
	require.Error(t, err)
}

func TestExportUploadsWritesManifest(t *testing.T) {
	ctx := context.Background()
	backend := NewLocalBackend(t.TempDir())
	require.NoError(t, backend.Store(ctx, "2/ab/file.txt", []byte("hello"), ObjectMeta{}))

	dir := t.TempDir()
	tr := NewTransfer(backend, 2)
	attachments := []domain.Record{
		{"id": int64(1), "path_id": "2/ab/file.txt", "owner": int64(7), "realm": int64(2)},
	}

	require.NoError(t, tr.ExportUploads(ctx, dir, attachments))

	data, err := os.ReadFile(filepath.Join(dir, domain.BlobUploads, "2/ab/file.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	records, ok, err := ReadManifest(dir, domain.BlobUploads)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, "2/ab/file.txt", records[0].Path)
	assert.Equal(t, int64(7), records[0].UserProfileID)
	assert.Equal(t, int64(5), records[0].Size)
}

func TestExportUploadsEmptyManifest(t *testing.T) {
	dir := t.TempDir()
	tr := NewTransfer(NewLocalBackend(t.TempDir()), 1)

	require.NoError(t, tr.ExportUploads(context.Background(), dir, nil))

	records, ok, err := ReadManifest(dir, domain.BlobUploads)
	require.NoError(t, err)
	assert.True(t, ok, "an empty category still writes its manifest")
	assert.Empty(t, records)
}

func TestExportAvatarsOwnershipAndSelection(t *testing.T) {
	ctx := context.Background()
	backend := NewLocalBackend(t.TempDir())

	ownerMeta := ObjectMeta{UserMeta: map[string]string{MetaUserProfileID: "7"}}
	require.NoError(t, backend.Store(ctx, AvatarBasePath(2, 7), []byte("png"), ownerMeta))
	require.NoError(t, backend.Store(ctx, AvatarOriginalPath(2, 7), []byte("orig"), ownerMeta))
	// Unrelated key under the realm prefix; must be ignored, not exported.
	require.NoError(t, backend.Store(ctx, "2/stray", []byte("x"), ObjectMeta{}))

	dir := t.TempDir()
	tr := NewTransfer(backend, 2)
	users := []domain.Record{{"id": int64(7)}}

	require.NoError(t, tr.ExportAvatars(ctx, dir, 2, users, 0))

	records, ok, err := ReadManifest(dir, domain.BlobAvatars)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, records, 2)
	var originals int
	for _, r := range records {
		assert.Equal(t, int64(7), r.UserProfileID)
		if r.Original {
			originals++
		}
	}
	assert.Equal(t, 1, originals)
}

func TestExportAvatarsRejectsForeignOwner(t *testing.T) {
	ctx := context.Background()
	backend := NewLocalBackend(t.TempDir())
	require.NoError(t, backend.Store(ctx, AvatarBasePath(2, 7), []byte("png"),
		ObjectMeta{UserMeta: map[string]string{MetaUserProfileID: "55"}}))

	tr := NewTransfer(backend, 1)
	err := tr.ExportAvatars(ctx, t.TempDir(), 2, []domain.Record{{"id": int64(7)}}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown user")
}

func TestReadManifestMissing(t *testing.T) {
	_, ok, err := ReadManifest(t.TempDir(), domain.BlobEmoji)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TEST HELPERS

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMediumThumbnail(t *testing.T) {
	out, err := mediumThumbnail(testPNG(t, 64, 48))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, MediumAvatarSize, img.Bounds().Dx())
	assert.Equal(t, MediumAvatarSize, img.Bounds().Dy())
}

func TestMediumThumbnailCorruptInput(t *testing.T) {
	_, err := mediumThumbnail([]byte("not an image"))
	require.Error(t, err)
}

func TestGuessContentType(t *testing.T) {
	assert.Equal(t, "text/plain", guessContentType("a.png", "text/plain"))
	assert.Equal(t, "image/png", guessContentType("a.png", ""))
	assert.Equal(t, "application/octet-stream", guessContentType("noext", ""))
}
