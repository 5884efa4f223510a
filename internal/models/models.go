package models

import "time"

// Asset describes a stored binary object with permanent identity. Path is
// relative to the configured blob root; joining it against that root is the
// delivery layer's job, so metadata responses never expose absolute locations.
type Asset struct {
	ID        string
	Path      string
	MimeType  string
	SizeBytes int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
