package types

import (
	"strings"

	"github.com/google/uuid"
)

// Reserved metadata table names. Every space carries these alongside the
// per-table data tables.
const (
	NodesTable   = "nodes"
	FieldsTable  = "fields"
	ViewsTable   = "views"
	DocsTable    = "docs"
	FilesTable   = "files"
	ScriptsTable = "scripts"
)

// ReservedTableNames lists all metadata table names for enumeration.
var ReservedTableNames = []string{
	NodesTable,
	FieldsTable,
	ViewsTable,
	DocsTable,
	FilesTable,
	ScriptsTable,
}

// Physical table name prefixes. A table-type node with id X stores its rows
// in tb_X; a link field stores its relation pairs in an lk_ join table.
const (
	DataTablePrefix = "tb_"
	LinkTablePrefix = "lk_"
)

// ShortIDLength is the suffix length used for compact node references.
const ShortIDLength = 8

// NewEntityID generates a new entity id: a UUID v7 with the dashes stripped,
// so the id is safe to embed in physical table names.
func NewEntityID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails.
		return strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

// ShortID returns the compact suffix form of an entity id, used in URLs and
// cross-references. Ids shorter than the suffix length are returned as-is.
func ShortID(id string) string {
	if len(id) <= ShortIDLength {
		return id
	}
	return id[len(id)-ShortIDLength:]
}

// RawTableName returns the physical table name for a logical table id.
func RawTableName(tableID string) string {
	return DataTablePrefix + tableID
}

// TableIDFromRawName extracts the logical table id from a physical data
// table name. Returns false if the name does not carry the data prefix.
func TableIDFromRawName(rawName string) (string, bool) {
	if !strings.HasPrefix(rawName, DataTablePrefix) {
		return "", false
	}
	return strings.TrimPrefix(rawName, DataTablePrefix), true
}

// LinkTableName returns the join table name backing a link field. One join
// table exists per link field, keyed by the owning table and column.
func LinkTableName(tableID, tableColumnName string) string {
	return LinkTablePrefix + tableID + "__" + tableColumnName
}

// ParseLinkTableName splits a join table name into the owning table id and
// the link field's column name. Returns false for non-link tables.
func ParseLinkTableName(rawName string) (tableID, tableColumnName string, ok bool) {
	if !strings.HasPrefix(rawName, LinkTablePrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(rawName, LinkTablePrefix)
	parts := strings.SplitN(rest, "__", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsLinkTable reports whether a physical table name is a link join table.
func IsLinkTable(rawName string) bool {
	return strings.HasPrefix(rawName, LinkTablePrefix)
}
