// Package session holds the run-scoped state of one import: the old-ID to
// new-ID translation table and the old-path to new-path map for blob
// storage. A Session is constructed at the start of an import run, passed
// by reference through every phase, and discarded at the end — never a
// process-wide singleton, so concurrent imports (as under test) cannot
// bleed into each other.
package session

import (
	"fmt"

	"github.com/chatforge/realmsync/internal/domain"
)

// Categories of IDs the remapper is allowed to translate. The whitelist is
// deliberate: a table whose IDs need remapping but is missing here is a
// latent bug, so the session fails fast instead of silently skipping.
var knownCategories = map[string]bool{
	"client":                  true,
	"user_profile":            true,
	"realm":                   true,
	"stream":                  true,
	"recipient":               true,
	"subscription":            true,
	"defaultstream":           true,
	"huddle":                  true,
	"usergroup":               true,
	"usergroupmembership":     true,
	"realmemoji":              true,
	"realmdomain":             true,
	"realmfilter":             true,
	"realmplayground":         true,
	"realmauthmethod":         true,
	"realmuserdefault":        true,
	"realmauditlog":           true,
	"message":                 true,
	"scheduledmessage":        true,
	"reaction":                true,
	"userstatus":              true,
	"attachment":              true,
	"alertword":               true,
	"userhotspot":             true,
	"mutedtopic":              true,
	"muteduser":               true,
	"service":                 true,
	"botstoragedata":          true,
	"botconfigdata":           true,
	"userpresence":            true,
	"useractivity":            true,
	"useractivityinterval":    true,
	"customprofilefield":      true,
	"customprofilefieldvalue": true,
	"analytics_realmcount":    true,
	"analytics_usercount":     true,
	"analytics_streamcount":   true,
}

// Session owns one import run's ID and path mappings.
type Session struct {
	idMap   map[string]map[int64]int64
	pathMap map[string]string

	// oldRecipientToOldHuddle is populated while remapping huddle-type
	// recipients: the huddle's canonical hash can only be recomputed
	// once the full post-remap member list is known, so the link from
	// recipient to huddle is carried to the subscription phase.
	oldRecipientToOldHuddle map[int64]int64
}

// New creates an empty session.
func New() *Session {
	return &Session{
		idMap:                   make(map[string]map[int64]int64),
		pathMap:                 make(map[string]string),
		oldRecipientToOldHuddle: make(map[int64]int64),
	}
}

// UpdateIDMap records old → new for the category. Unknown categories are a
// programming error and fail immediately.
func (s *Session) UpdateIDMap(category string, oldID, newID int64) error {
	if !knownCategories[category] {
		return fmt.Errorf("session: category %q is not registered in the ID map whitelist", category)
	}
	m := s.idMap[category]
	if m == nil {
		m = make(map[int64]int64)
		s.idMap[category] = m
	}
	m[oldID] = newID
	return nil
}

// MapID looks up the new ID for an old one. ok=false means the ID was not
// part of this import, which is legitimate for references that point
// outside the tenant boundary.
func (s *Session) MapID(category string, oldID int64) (int64, bool) {
	newID, ok := s.idMap[category][oldID]
	return newID, ok
}

// SetPath records an old storage path's replacement.
func (s *Session) SetPath(oldPath, newPath string) {
	s.pathMap[oldPath] = newPath
}

// MapPath looks up the new storage path for an old one.
func (s *Session) MapPath(oldPath string) (string, bool) {
	p, ok := s.pathMap[oldPath]
	return p, ok
}

// PathPairs returns a copy of every (old, new) path mapping, for content
// URL rewriting.
func (s *Session) PathPairs() map[string]string {
	out := make(map[string]string, len(s.pathMap))
	for k, v := range s.pathMap {
		out[k] = v
	}
	return out
}

// HuddleForOldRecipient returns the old huddle ID linked to an old
// huddle-type recipient ID.
func (s *Session) HuddleForOldRecipient(oldRecipientID int64) (int64, bool) {
	h, ok := s.oldRecipientToOldHuddle[oldRecipientID]
	return h, ok
}

// AllocateFor records a contiguous mapping from each record's current
// "id" field to the corresponding entry of newIDs, then rewrites the
// field. Records and newIDs must be parallel.
func (s *Session) AllocateFor(category string, records []domain.Record, newIDs []int64) error {
	if len(records) != len(newIDs) {
		return fmt.Errorf("session: allocate %s: %d records but %d ids", category, len(records), len(newIDs))
	}
	for i, r := range records {
		if err := s.UpdateIDMap(category, r.Int("id"), newIDs[i]); err != nil {
			return err
		}
		r["id"] = newIDs[i]
	}
	return nil
}
