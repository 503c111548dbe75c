package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// HuddleHash computes the canonical identity hash for a group direct
// message from its member user IDs: SHA-1 of the comma-joined sorted ID
// list. The hash changes whenever the member IDs change, which is exactly
// what makes it unusable across an import — it must be recomputed from the
// remapped IDs, never copied.
func HuddleHash(userIDs []int64) string {
	ids := make([]int64, len(userIDs))
	copy(ids, userIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}
