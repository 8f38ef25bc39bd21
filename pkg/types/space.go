package types

import "errors"

// Space is the top-level handle on one local database: the hierarchy of
// tables, documents and folders plus their storage. Callers attach to a
// backend, operate on the stores, and detach when done.
type Space interface {
	// Attach connects the space to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls
	// succeed. After Detach, store operations return ErrSpaceDetached.
	Detach() error

	// Tree returns the hierarchy store.
	Tree() TreeStore

	// Views returns the saved-query store.
	Views() ViewStore

	// Docs returns the document content store.
	Docs() DocStore

	// Files returns the blob metadata store.
	Files() FileStore

	// Scripts returns the stored automation store.
	Scripts() ScriptStore

	// CreateTable creates a table node, its physical storage, the title
	// field, a default grid view, and the change-capture triggers.
	CreateTable(name string) (*Node, error)

	// DeleteTable drops a table's physical storage and removes its node,
	// fields and views. This is the purge transition for table nodes.
	DeleteTable(tableID string) error

	// Manager returns the per-table facade for row and column operations.
	Manager(tableID string) (TableStore, error)

	// Flush blocks until all in-flight change reactions (formula
	// recomputation, reverse-link refreshes) have settled. Mutating calls
	// return before their derived effects apply; Flush closes that window
	// when a caller needs to observe derived state.
	Flush()
}

// TreeStore maintains the navigable node hierarchy.
type TreeStore interface {
	// Add inserts a node, assigning the next ordinal position. Returns the
	// node including the assigned position.
	Add(node *Node) (*Node, error)

	// Get retrieves a node by exact id. Returns ErrNotFound if absent.
	Get(id string) (*Node, error)

	// GetNode retrieves a node by exact id or by its 8-character short id
	// suffix. Returns ErrAmbiguousID when a suffix matches several nodes.
	GetNode(idOrShortID string) (*Node, error)

	// List returns nodes matching the filter, ordered by position.
	List(filter NodeListFilter) ([]*Node, error)

	// UpdateName renames a node.
	UpdateName(id, name string) error

	// Pin sets or clears the pinned flag.
	Pin(id string, pinned bool) error

	// Delete soft-deletes a node. The node is retained with IsDeleted set.
	Delete(id string) error

	// MoveIntoTable reparents a node under a table, migrating its row
	// representation in one transaction. CheckLoop runs first.
	MoveIntoTable(nodeID, targetTableID string, previousParentID *string) error

	// CheckLoop rejects a reparenting that would make nodeID an ancestor
	// of its own new parent. Returns ErrCycleDetected on a would-be cycle.
	CheckLoop(nodeID, proposedParentID string) error
}

// TableStore is the per-table facade over one table's rows and columns.
// Derived-value maintenance (formula cells, reverse-link caches) is driven
// by the change event bus, not by these calls directly.
type TableStore interface {
	// TableID returns the logical table id.
	TableID() string

	// AddRow inserts a row, optionally pre-seeding values (including _id).
	// Returns the new row's id.
	AddRow(initial map[string]any) (string, error)

	// GetRow returns a row's decoded cell values keyed by column name.
	GetRow(rowID string) (map[string]any, error)

	// Rows returns all rows with raw column values.
	Rows() ([]map[string]any, error)

	// SetCell encodes and writes one cell, persisting any option-vocabulary
	// side effect and propagating title writes to the hierarchy node.
	SetCell(rowID, tableColumnName string, value any) error

	// SetCellLinks replaces the link-field relation set for one row.
	SetCellLinks(rowID, tableColumnName string, targetRowIDs []string) error

	// DeleteRow removes a row and its link relations.
	DeleteRow(rowID string) error

	// Fields returns the table's field definitions.
	Fields() ([]*Field, error)

	// Field returns one field definition by its physical column name.
	Field(tableColumnName string) (*Field, error)

	// AddColumn adds a field and its physical column.
	AddColumn(field *Field) (*Field, error)

	// DeleteField removes a field definition and drops its physical
	// column; formula fields are unregistered from the dependency map
	// and link fields lose their join table.
	DeleteField(tableColumnName string) error

	// UpdateColumnProperty persists a field's configuration. For formula
	// fields this triggers one full recomputation pass over the column.
	UpdateColumnProperty(tableColumnName string, property []byte) error

	// ConvertFieldType changes a field's type. Conversions to select
	// types scan existing values and reject vocabularies over the option
	// ceiling with ErrTooManyOptions.
	ConvertFieldType(tableColumnName, newType string) error

	// RenameSelectOption changes an option's display name. Cells keep
	// their stored option ids.
	RenameSelectOption(tableColumnName, optionID, newName string) error

	// DeleteSelectOption removes an option from a select field's
	// vocabulary and clears the cells that referenced it.
	DeleteSelectOption(tableColumnName, optionID string) error
}

// ViewStore persists named queries per table.
type ViewStore interface {
	Add(view *View) (*View, error)
	Get(id string) (*View, error)
	List(tableID string) ([]*View, error)
	UpdateQuery(id, query string) error
	Delete(id string) error
	DeleteByTableID(tableID string) error

	// CreateDefaultView seeds a SELECT * grid view for a table.
	CreateDefaultView(tableID string) (*View, error)

	// IsRowExistInQuery reports whether the given row would appear in the
	// view query, evaluated against a single-row materialization instead
	// of the full table.
	IsRowExistInQuery(tableID, rowID, query string) (bool, error)
}

// DocStore persists document content.
type DocStore interface {
	Add(doc *Doc) (*Doc, error)
	Get(id string) (*Doc, error)
	UpdateContent(id, content string) error
	Delete(id string) error
}

// FileStore persists blobs and their metadata.
type FileStore interface {
	// AddFile writes blob content under the space's files directory and
	// records its metadata. Returns the stored file entry.
	AddFile(name string, content []byte) (*File, error)

	// GetFileByPath reads blob content by its stored relative path.
	GetFileByPath(path string) ([]byte, error)

	// DeleteEntry removes a file (or directory) and its metadata.
	DeleteEntry(path string, isDir bool) error

	Get(id string) (*File, error)
	List() ([]*File, error)
}

// ScriptStore persists stored automation entries.
type ScriptStore interface {
	Add(script *Script) (*Script, error)
	Get(id string) (*Script, error)
	List() ([]*Script, error)
	Delete(id string) error
}

// Space lifecycle errors.
var (
	ErrSpaceDetached   = errors.New("space is detached")
	ErrAlreadyAttached = errors.New("space is already attached")
	ErrTableNotFound   = errors.New("table not found")
)

// Store operation errors.
var (
	ErrNotFound    = errors.New("entity not found")
	ErrInvalidID   = errors.New("invalid entity ID")
	ErrInvalidData = errors.New("invalid entity data")
)
