package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/realmsync/internal/domain"
	"github.com/chatforge/realmsync/internal/schema"
)

func TestJSONUnmarshalPreservesIntegers(t *testing.T) {
	var data domain.TableData
	require.NoError(t, jsonUnmarshal([]byte(`{"zerver_message":[{"id":9007199254740993}]}`), &data))

	assert.Equal(t, int64(9007199254740993), data[domain.TableMessage][0].Int("id"),
		"ids above 2^53 must not round through float64")
}

func TestPreNormalize(t *testing.T) {
	data := domain.TableData{
		domain.TableUserProfile: {
			{"id": int64(3), "recipient": int64(30)},
		},
		domain.TableUserProfileMirrorDummy: {
			{"id": int64(1), "recipient": int64(10)},
		},
		domain.TableStream: {
			{"id": int64(5), "recipient_id": int64(50)},
		},
	}

	preNormalize(data)

	users := data[domain.TableUserProfile]
	require.Len(t, users, 2)
	assert.Equal(t, []int64{1, 3}, domain.IDs(users, "id"), "mirror dummies rejoin sorted")
	_, hasDummies := data[domain.TableUserProfileMirrorDummy]
	assert.False(t, hasDummies)

	for _, r := range users {
		assert.True(t, r.IsNull("recipient"))
		assert.True(t, r.IsNull("recipient_id"))
	}
	assert.True(t, data[domain.TableStream][0].IsNull("recipient_id"))
}

func TestDefloatify(t *testing.T) {
	sent := time.Date(2022, 7, 4, 10, 30, 0, 250000000, time.UTC)
	records := []domain.Record{
		{
			"date_sent":      float64(sent.UnixNano()) / float64(time.Second),
			"last_edit_time": nil,
			"content":        "hi",
		},
	}

	defloatify(domain.TableMessage, records)

	got, ok := records[0]["date_sent"].(time.Time)
	require.True(t, ok)
	assert.True(t, got.Equal(sent), "got %v want %v", got, sent)
	assert.True(t, records[0].IsNull("last_edit_time"))
	assert.Equal(t, "hi", records[0].Str("content"))
}

func TestDefloatifyUnregisteredTable(t *testing.T) {
	records := []domain.Record{{"timestamp": 1.5}}
	defloatify("zerver_client", records)
	assert.Equal(t, 1.5, records[0].Float("timestamp"))
}

func TestEveryForeignKeyHasACategory(t *testing.T) {
	for table, fields := range schema.ForeignKeys {
		for _, f := range fields {
			_, ok := fkCategory[f]
			assert.True(t, ok, "foreign key %s.%s has no remap category", table, f)
		}
	}
}

func TestRemapForeignKeysFollowsRegistry(t *testing.T) {
	im := New(nil, nil, Options{})
	require.NoError(t, im.sess.UpdateIDMap("user_profile", 7, 70))
	require.NoError(t, im.sess.UpdateIDMap("recipient", 3, 30))
	require.NoError(t, im.sess.UpdateIDMap("client", 1, 11))

	records := []domain.Record{
		{"id": int64(100), "sender": int64(7), "recipient": int64(3), "sending_client": int64(1)},
	}

	require.NoError(t, im.remapForeignKeys(domain.TableMessage, records))

	assert.Equal(t, int64(70), records[0].Int("sender_id"))
	assert.Equal(t, int64(30), records[0].Int("recipient_id"))
	assert.Equal(t, int64(11), records[0].Int("sending_client_id"))
}

func TestCountChunks(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, 1)
	writeChunk(t, dir, 2)

	n, err := countChunks(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCountChunksEmpty(t *testing.T) {
	n, err := countChunks(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCountChunksRefusesPartial(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, 1)
	writePartialChunk(t, dir, 2)

	_, err := countChunks(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partial")
}

func TestCountChunksRefusesGap(t *testing.T) {
	dir := t.TempDir()
	writeChunk(t, dir, 1)
	writeChunk(t, dir, 3) // chunk 2 missing

	_, err := countChunks(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contiguous")
}
