package session

import (
	"fmt"

	"github.com/chatforge/realmsync/internal/domain"
)

// RemapForeignKey rewrites records' field through the category's ID map
// and renames the field from "foo" to "foo_id" (the exported denormalized
// name becomes the raw column name). IDs missing from the map pass through
// unchanged: they model references outside the imported tenant, such as
// the shared system-bot realm. Null foreign keys stay null.
func (s *Session) RemapForeignKey(records []domain.Record, field, category string) error {
	if !knownCategories[category] {
		return fmt.Errorf("session: remap %q: category %q is not whitelisted", field, category)
	}
	newField := field + "_id"
	for _, r := range records {
		v, ok := r[field]
		if !ok {
			continue
		}
		delete(r, field)
		if v == nil {
			r[newField] = nil
			continue
		}
		oldID := domain.Record{field: v}.Int(field)
		if newID, found := s.idMap[category][oldID]; found {
			r[newField] = newID
		} else {
			r[newField] = oldID
		}
	}
	return nil
}

// RemapPrimaryKey rewrites the "id" field in place (no rename) through the
// category's map. Used when IDs were pre-allocated in an earlier pass,
// e.g. message IDs.
func (s *Session) RemapPrimaryKey(records []domain.Record, category string) error {
	if !knownCategories[category] {
		return fmt.Errorf("session: remap primary key: category %q is not whitelisted", category)
	}
	for _, r := range records {
		oldID := r.Int("id")
		if newID, found := s.idMap[category][oldID]; found {
			r["id"] = newID
		}
	}
	return nil
}

// RemapForeignKeyMany rewrites a list-valued field element-wise through
// the category's map, with the same rename and pass-through semantics as
// RemapForeignKey.
func (s *Session) RemapForeignKeyMany(records []domain.Record, field, category string) error {
	if !knownCategories[category] {
		return fmt.Errorf("session: remap many %q: category %q is not whitelisted", field, category)
	}
	newField := field + "_id"
	for _, r := range records {
		v, ok := r[field]
		if !ok {
			continue
		}
		delete(r, field)
		if v == nil {
			r[newField] = nil
			continue
		}
		old := domain.Record{field: v}.IntList(field)
		mapped := make([]int64, len(old))
		for i, id := range old {
			if newID, found := s.idMap[category][id]; found {
				mapped[i] = newID
			} else {
				mapped[i] = id
			}
		}
		r[newField] = mapped
	}
	return nil
}

// RemapRecipients rewrites the polymorphic type_id column of recipient
// rows, dispatching on the type discriminator: stream recipients resolve
// through the stream map, personal recipients through the user map, and
// huddle recipients through the huddle map. For huddles, the old
// recipient → old huddle link is recorded so the huddle's canonical hash
// can be recomputed once subscriptions are in.
func (s *Session) RemapRecipients(records []domain.Record) error {
	for _, r := range records {
		oldTypeID := r.Int("type_id")
		var category string
		switch r.Int("type") {
		case domain.RecipientStream:
			category = "stream"
		case domain.RecipientPersonal:
			category = "user_profile"
		case domain.RecipientHuddle:
			category = "huddle"
			s.oldRecipientToOldHuddle[r.Int("id")] = oldTypeID
		default:
			return fmt.Errorf("session: recipient %d has unknown type %d", r.Int("id"), r.Int("type"))
		}
		if newID, found := s.idMap[category][oldTypeID]; found {
			r["type_id"] = newID
		}
	}
	return nil
}
