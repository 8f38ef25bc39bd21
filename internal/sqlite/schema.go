// Package sqlite implements the SQLite storage backend for Fieldstone: the
// metadata tables, the per-table data storage, the change-capture triggers,
// and the recomputation engine that keeps derived cells correct.
package sqlite

// Schema DDL for the reserved metadata tables. Data tables (tb_ prefix) and
// link join tables (lk_ prefix) are created on demand.
const (
	createNodes = `CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    parent_id TEXT,
    is_pinned INTEGER NOT NULL DEFAULT 0,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    position REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createFields = `CREATE TABLE IF NOT EXISTS fields (
    table_id TEXT NOT NULL,
    table_column_name TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    property TEXT,
    created_at TEXT NOT NULL,
    PRIMARY KEY (table_id, table_column_name)
);`

	createViews = `CREATE TABLE IF NOT EXISTS views (
    id TEXT PRIMARY KEY,
    table_id TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    query TEXT NOT NULL,
    properties TEXT
);`

	createDocs = `CREATE TABLE IF NOT EXISTS docs (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createFiles = `CREATE TABLE IF NOT EXISTS files (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    size INTEGER NOT NULL,
    mime_type TEXT,
    created_at TEXT NOT NULL
);`

	createScripts = `CREATE TABLE IF NOT EXISTS scripts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    code TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`
)

// Index DDL for common queries.
const (
	idxNodesParent = `CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);`
	idxNodesType   = `CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);`
	idxFieldsTable = `CREATE INDEX IF NOT EXISTS idx_fields_table ON fields(table_id);`
	idxViewsTable  = `CREATE INDEX IF NOT EXISTS idx_views_table ON views(table_id);`
	idxFilesPath   = `CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);`
	idxScriptsName = `CREATE INDEX IF NOT EXISTS idx_scripts_name ON scripts(name);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createNodes,
	createFields,
	createViews,
	createDocs,
	createFiles,
	createScripts,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxNodesParent,
	idxNodesType,
	idxFieldsTable,
	idxViewsTable,
	idxFilesPath,
	idxScriptsName,
}
