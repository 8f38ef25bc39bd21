package types

import "time"

// Doc holds the markdown content of a document node. A table row promoted to
// a document reuses the row's id, so the doc, the hierarchy node, and the
// row all share one identifier.
type Doc struct {
	ID        string    // Entity id; equals the node id (and row id, if promoted).
	Content   string    // Markdown content.
	CreatedAt time.Time // Timestamp of creation.
	UpdatedAt time.Time // Timestamp of last modification.
}

// File records a blob persisted to the space's file store.
type File struct {
	ID        string // Entity id.
	Name      string // Original file name.
	Path      string // Path relative to the space's files directory.
	Size      int64  // Size in bytes.
	MimeType  string // Declared MIME type; may be empty.
	CreatedAt time.Time
}

// Script is a stored automation entry. Execution is out of scope for the
// storage layer; scripts are persisted and enumerated only.
type Script struct {
	ID        string
	Name      string
	Code      string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
