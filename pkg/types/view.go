package types

import (
	"encoding/json"
	"errors"
)

// View types determine how a saved query is presented.
const (
	ViewTypeGrid    = "grid"
	ViewTypeGallery = "gallery"
	ViewTypeDocList = "docList"
)

// validViewTypes is the set of recognized view type values.
var validViewTypes = map[string]bool{
	ViewTypeGrid:    true,
	ViewTypeGallery: true,
	ViewTypeDocList: true,
}

// IsValidViewType reports whether the given string is a recognized view type.
func IsValidViewType(vt string) bool {
	return validViewTypes[vt]
}

// DefaultViewName is the name given to a table's seeded grid view.
const DefaultViewName = "All"

// View is a named query scoped to a table. The query's FROM clause is
// expected to reference the owning table; this is a convention enforced
// best-effort, not by a SQL parser.
type View struct {
	ID         string          // Entity id.
	TableID    string          // Owning logical table id.
	Name       string          // Display name.
	Type       string          // One of the ViewType constants.
	Query      string          // SQL select text.
	Properties json.RawMessage // Type-specific layout configuration.
}

// View operation errors.
var (
	ErrInvalidView = errors.New("invalid view data")
)
