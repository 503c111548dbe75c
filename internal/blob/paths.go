package blob

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// AvatarBasePath returns the storage key of a user's resized avatar. The
// hash is derived from the realm and user IDs, so the key is computable
// without a bucket listing. The ".original" variant holds the upload as
// received; "-medium.png" is the derived thumbnail.
func AvatarBasePath(realmID, userID int64) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%d:%d", realmID, userID)))
	return fmt.Sprintf("%d/%s", realmID, hex.EncodeToString(sum[:]))
}

// AvatarOriginalPath is the key of the as-uploaded avatar image.
func AvatarOriginalPath(realmID, userID int64) string {
	return AvatarBasePath(realmID, userID) + ".original"
}

// AvatarMediumPath is the key of the medium thumbnail.
func AvatarMediumPath(realmID, userID int64) string {
	return AvatarBasePath(realmID, userID) + "-medium.png"
}

// EmojiPath is the key of a realm emoji image.
func EmojiPath(realmID int64, fileName string) string {
	return fmt.Sprintf("%d/emoji/images/%s", realmID, fileName)
}

// RealmIconPrefix is the key prefix under which a realm's icon and logo
// images live.
func RealmIconPrefix(realmID int64) string {
	return fmt.Sprintf("%d/realm/", realmID)
}

// rewriteRealmPrefix replaces the leading realm-ID path component of key.
// Blob keys are realm scoped, so re-homing a blob under the destination
// realm is a prefix swap.
func rewriteRealmPrefix(key string, newRealmID int64) string {
	_, rest, ok := strings.Cut(key, "/")
	if !ok {
		return fmt.Sprintf("%d/%s", newRealmID, key)
	}
	return fmt.Sprintf("%d/%s", newRealmID, rest)
}
