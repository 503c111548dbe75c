package domain

// BlobRecord is one entry in a per-category blob manifest (records.json).
// It describes a transferred blob's logical identity independent of which
// storage backend holds the bytes.
type BlobRecord struct {
	Path          string  `json:"path"`
	SourcePath    string  `json:"s3_path"`
	Size          int64   `json:"size"`
	LastModified  float64 `json:"last_modified"`
	ContentType   string  `json:"content_type,omitempty"`
	UserProfileID int64   `json:"user_profile_id,omitempty"`
	RealmID       int64   `json:"realm_id"`

	// Avatar-only: set on the ".original" variant of a user avatar.
	Original bool `json:"original,omitempty"`

	// Emoji-only: the emoji name and file name within the realm's
	// emoji directory.
	Name     string `json:"name,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// Blob manifest categories, which double as output subdirectory names.
const (
	BlobUploads    = "uploads"
	BlobAvatars    = "avatars"
	BlobEmoji      = "emoji"
	BlobRealmIcons = "realm_icons"
)
