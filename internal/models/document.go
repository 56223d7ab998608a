package models

import "time"

// Document is the metadata row for one encrypted attachment blob. The
// opaque name points at the ciphertext file on disk; the original filename
// exists only here, inside the encrypted database.
type Document struct {
	ID           string
	OpaqueName   string
	OriginalName string
	ContentType  string
	SizeBytes    int64
	CreatedAt    time.Time
}
