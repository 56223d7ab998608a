package backup

import "time"

// FormatVersion is the newest archive format this build can read and the
// version it always writes.
const FormatVersion = 1

// ManifestName is the archive entry holding the manifest.
const ManifestName = "manifest.json"

// Manifest describes the contents of a backup archive. The JSON layout is
// part of the archive format and must stay wire-compatible across releases.
type Manifest struct {
	FormatVersion int         `json:"formatVersion"`
	TenantID      string      `json:"tenantId"`
	CreatedAt     time.Time   `json:"createdAt"`
	Note          string      `json:"note,omitempty"`
	Files         []FileEntry `json:"files"`
}

// FileEntry records the integrity data for one archived file.
type FileEntry struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}
