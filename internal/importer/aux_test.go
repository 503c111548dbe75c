package importer

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/realmsync/internal/domain"
)

func TestRemapUserFieldValues(t *testing.T) {
	im := newTestImporter(t)
	require.NoError(t, im.sess.UpdateIDMap("user_profile", 1, 11))
	require.NoError(t, im.sess.UpdateIDMap("user_profile", 2, 22))

	userFields := map[int64]bool{5: true}
	values := []domain.Record{
		{"field": int64(5), "value": "[1, 2, 3]"},
		{"field": int64(6), "value": "free text"},
	}

	require.NoError(t, im.remapUserFieldValues(userFields, values))

	assert.Equal(t, "[11,22,3]", values[0].Str("value"))
	assert.Equal(t, "free text", values[1].Str("value"), "non-user fields are untouched")
}

func TestRemapUserFieldValuesMalformed(t *testing.T) {
	im := newTestImporter(t)

	userFields := map[int64]bool{5: true}
	values := []domain.Record{{"field": int64(5), "value": "not json"}}

	err := im.remapUserFieldValues(userFields, values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestRemapUserFieldValuesNoUserFields(t *testing.T) {
	im := newTestImporter(t)
	values := []domain.Record{{"field": int64(5), "value": "not json"}}

	require.NoError(t, im.remapUserFieldValues(nil, values))
	assert.Equal(t, "not json", values[0].Str("value"))
}

func TestUnusablePassword(t *testing.T) {
	p := unusablePassword()
	assert.Regexp(t, regexp.MustCompile(`^![0-9a-f]{32}$`), p)
	assert.NotEqual(t, p, unusablePassword())
}

func TestFreshAPIKey(t *testing.T) {
	k := freshAPIKey()
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), k)
	assert.NotEqual(t, k, freshAPIKey())
}
