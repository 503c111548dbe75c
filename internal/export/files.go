package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// RealmFile is the core-cluster payload at the export root.
	RealmFile = "realm.json"
	// UserFile is the single-user export payload.
	UserFile = "user.json"
	// AttachmentFile holds attachment rows plus their message join tables.
	AttachmentFile = "attachment.json"
	// AnalyticsFile holds the analytics count tables.
	AnalyticsFile = "analytics.json"

	// partialSuffix marks a message chunk whose UserMessage rows have
	// not been merged in yet. The importer refuses to read these.
	partialSuffix = ".partial"
)

// ChunkFile returns the final name of message chunk n (one based).
func ChunkFile(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("messages-%06d.json", n))
}

func partialChunkFile(dir string, n int) string {
	return ChunkFile(dir, n) + partialSuffix
}

// writeJSONFile marshals v with indentation and writes it atomically
// enough for our purposes: a failed write leaves a truncated file whose
// parse failure aborts the import rather than silently losing rows.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
