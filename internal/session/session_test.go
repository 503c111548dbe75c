package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/realmsync/internal/domain"
)

func TestUpdateIDMapAndLookup(t *testing.T) {
	s := New()

	require.NoError(t, s.UpdateIDMap("user_profile", 10, 110))

	newID, ok := s.MapID("user_profile", 10)
	assert.True(t, ok)
	assert.Equal(t, int64(110), newID)

	_, ok = s.MapID("user_profile", 11)
	assert.False(t, ok)
}

func TestUpdateIDMapRejectsUnknownCategory(t *testing.T) {
	s := New()

	err := s.UpdateIDMap("widget", 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widget")
}

func TestAllocateFor(t *testing.T) {
	s := New()
	records := []domain.Record{
		{"id": int64(7), "name": "a"},
		{"id": int64(9), "name": "b"},
	}

	require.NoError(t, s.AllocateFor("stream", records, []int64{101, 102}))

	assert.Equal(t, int64(101), records[0].Int("id"))
	assert.Equal(t, int64(102), records[1].Int("id"))

	newID, ok := s.MapID("stream", 7)
	assert.True(t, ok)
	assert.Equal(t, int64(101), newID)
	newID, ok = s.MapID("stream", 9)
	assert.True(t, ok)
	assert.Equal(t, int64(102), newID)
}

func TestAllocateForLengthMismatch(t *testing.T) {
	s := New()
	records := []domain.Record{{"id": int64(1)}}

	err := s.AllocateFor("stream", records, []int64{1, 2})
	require.Error(t, err)
}

func TestRemapForeignKeyRenamesAndRemaps(t *testing.T) {
	s := New()
	require.NoError(t, s.UpdateIDMap("user_profile", 5, 50))

	records := []domain.Record{
		{"id": int64(1), "sender": int64(5)},
		{"id": int64(2), "sender": int64(8)}, // outside the tenant, passes through
		{"id": int64(3), "sender": nil},
		{"id": int64(4)}, // field absent, untouched
	}

	require.NoError(t, s.RemapForeignKey(records, "sender", "user_profile"))

	assert.Equal(t, int64(50), records[0].Int("sender_id"))
	assert.Equal(t, int64(8), records[1].Int("sender_id"))
	assert.True(t, records[2].IsNull("sender_id"))
	_, hasOld := records[0]["sender"]
	assert.False(t, hasOld)
	_, hasNew := records[3]["sender_id"]
	assert.False(t, hasNew)
}

func TestRemapForeignKeyUnknownCategory(t *testing.T) {
	s := New()
	err := s.RemapForeignKey(nil, "sender", "widget")
	require.Error(t, err)
}

func TestRemapPrimaryKey(t *testing.T) {
	s := New()
	require.NoError(t, s.UpdateIDMap("message", 100, 900))

	records := []domain.Record{
		{"id": int64(100)},
		{"id": int64(200)}, // unmapped stays
	}

	require.NoError(t, s.RemapPrimaryKey(records, "message"))

	assert.Equal(t, int64(900), records[0].Int("id"))
	assert.Equal(t, int64(200), records[1].Int("id"))
}

func TestRemapForeignKeyMany(t *testing.T) {
	s := New()
	require.NoError(t, s.UpdateIDMap("message", 1, 11))
	require.NoError(t, s.UpdateIDMap("message", 2, 12))

	records := []domain.Record{
		{"messages": []int64{1, 2, 3}},
		{"messages": nil},
	}

	require.NoError(t, s.RemapForeignKeyMany(records, "messages", "message"))

	assert.Equal(t, []int64{11, 12, 3}, records[0].IntList("messages_id"))
	assert.True(t, records[1].IsNull("messages_id"))
}

func TestRemapRecipients(t *testing.T) {
	s := New()
	require.NoError(t, s.UpdateIDMap("stream", 1, 11))
	require.NoError(t, s.UpdateIDMap("user_profile", 2, 22))
	require.NoError(t, s.UpdateIDMap("huddle", 3, 33))

	records := []domain.Record{
		{"id": int64(101), "type": domain.RecipientStream, "type_id": int64(1)},
		{"id": int64(102), "type": domain.RecipientPersonal, "type_id": int64(2)},
		{"id": int64(103), "type": domain.RecipientHuddle, "type_id": int64(3)},
	}

	require.NoError(t, s.RemapRecipients(records))

	assert.Equal(t, int64(11), records[0].Int("type_id"))
	assert.Equal(t, int64(22), records[1].Int("type_id"))
	assert.Equal(t, int64(33), records[2].Int("type_id"))

	// The huddle link is recorded against the recipient's old ID.
	huddleID, ok := s.HuddleForOldRecipient(103)
	assert.True(t, ok)
	assert.Equal(t, int64(3), huddleID)
	_, ok = s.HuddleForOldRecipient(101)
	assert.False(t, ok)
}

func TestRemapRecipientsUnknownType(t *testing.T) {
	s := New()
	records := []domain.Record{
		{"id": int64(1), "type": int64(9), "type_id": int64(1)},
	}

	err := s.RemapRecipients(records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestPathMap(t *testing.T) {
	s := New()
	s.SetPath("2/abc/file.png", "7/xyz/file.png")

	p, ok := s.MapPath("2/abc/file.png")
	assert.True(t, ok)
	assert.Equal(t, "7/xyz/file.png", p)

	_, ok = s.MapPath("2/other")
	assert.False(t, ok)

	// PathPairs hands back a copy, not the live map.
	pairs := s.PathPairs()
	pairs["2/abc/file.png"] = "clobbered"
	p, _ = s.MapPath("2/abc/file.png")
	assert.Equal(t, "7/xyz/file.png", p)
}

func TestHuddleHashChangesAfterMemberRemap(t *testing.T) {
	s := New()
	require.NoError(t, s.UpdateIDMap("user_profile", 1, 201))
	require.NoError(t, s.UpdateIDMap("user_profile", 2, 202))
	require.NoError(t, s.UpdateIDMap("user_profile", 3, 203))

	oldMembers := []int64{1, 2, 3}
	oldHash := domain.HuddleHash(oldMembers)

	newMembers := make([]int64, len(oldMembers))
	for i, id := range oldMembers {
		newID, ok := s.MapID("user_profile", id)
		require.True(t, ok)
		newMembers[i] = newID
	}
	newHash := domain.HuddleHash(newMembers)

	assert.NotEqual(t, oldHash, newHash)
	assert.Equal(t, domain.HuddleHash([]int64{203, 201, 202}), newHash)
}
