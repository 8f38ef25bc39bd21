package types

import (
	"errors"
	"time"
)

// Node types. A node is an entry in the hierarchical namespace.
const (
	NodeTypeTable  = "table"
	NodeTypeDoc    = "doc"
	NodeTypeFolder = "folder"
)

// validNodeTypes is the set of recognized node type values.
var validNodeTypes = map[string]bool{
	NodeTypeTable:  true,
	NodeTypeDoc:    true,
	NodeTypeFolder: true,
}

// IsValidNodeType reports whether the given string is a recognized node type.
func IsValidNodeType(nt string) bool {
	return validNodeTypes[nt]
}

// Node represents an entry in the space's hierarchy: a table, document, or
// folder. The parent-child relation over non-deleted nodes is kept acyclic
// by TreeStore.CheckLoop. Nodes are soft-deleted; only table-type nodes have
// their physical storage dropped on purge.
type Node struct {
	ID        string    // Entity id (UUID v7, dashes stripped).
	Name      string    // Display name; mutable.
	Type      string    // One of the NodeType constants.
	ParentID  *string   // Parent node id; nil for top-level nodes.
	IsPinned  bool      // Pinned to the top of the sidebar.
	IsDeleted bool      // Soft-delete flag; deleted nodes are retained.
	Position  float64   // Ordinal for stable sibling ordering.
	CreatedAt time.Time // Timestamp of creation.
	UpdatedAt time.Time // Timestamp of last modification.
}

// Tree operation errors.
var (
	ErrCycleDetected = errors.New("move would create a cycle in the hierarchy")
	ErrAmbiguousID   = errors.New("short id matches more than one node")
	ErrInvalidNode   = errors.New("invalid node data")
)

// NodeListFilter narrows TreeStore.List results.
type NodeListFilter struct {
	// Query is a substring match on node name. Empty matches all.
	Query string

	// WithSubNodes includes nested matches. When false, name matches are
	// restricted to top-level nodes so results are not flooded with
	// descendants of a matching parent.
	WithSubNodes bool
}
