package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/fieldstone/internal/events"
	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// Backend implements types.Space over an embedded SQLite database.
// One Backend owns one space: its metadata tables, its per-table data
// storage, a change event bus fed by row-level triggers, and the
// recomputation machinery subscribed to that bus.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	spaceID  string
	db       *sql.DB
	adapter  *adapter
	bus      *events.Bus

	tree    *TreeTable
	fields  *FieldsTable
	views   *ViewTable
	docs    *DocsTable
	files   *FilesTable
	scripts *ScriptsTable

	links   *linkService
	selects *selectService

	updater     *linkRelationUpdater
	unsubscribe func()
}

var _ types.Space = (*Backend)(nil)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach initializes the backend with the given configuration. Creates
// DataDir if it does not exist, applies the schema, registers the UDFs,
// and recreates the change-capture triggers for every existing table so
// their baked-in routing matches this attach.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	registerUDFs()

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "space.db"))
	if err != nil {
		return err
	}
	// One connection serializes writers with the async recomputation
	// goroutines; SQLite would otherwise answer overlap with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, ddl := range append(append([]string{}, schemaDDL...), indexDDL...) {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.spaceID = types.NewEntityID()
	b.bus = events.NewBus()
	b.adapter = newAdapter(db, b.bus)

	b.tree = &TreeTable{backend: b}
	b.fields = &FieldsTable{backend: b}
	b.views = &ViewTable{backend: b}
	b.docs = &DocsTable{backend: b}
	b.files = &FilesTable{backend: b, dir: filepath.Join(dataDir, "files")}
	b.scripts = &ScriptsTable{backend: b}
	b.links = &linkService{backend: b}
	b.selects = &selectService{backend: b}
	b.updater = newLinkRelationUpdater(b)

	b.attached = true

	if err := b.refreshAllTriggers(); err != nil {
		b.attached = false
		db.Close()
		return fmt.Errorf("recreating triggers: %w", err)
	}

	bindEmitter(b.spaceID, b.adapter.emit)
	handler := &dataChangeHandler{backend: b}
	b.unsubscribe = b.bus.Subscribe(handler.handle)

	return nil
}

// Detach releases all resources held by the backend: it stops signal
// dispatch, drains in-flight recomputation, flushes pending reverse-link
// refreshes, and closes the database. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	if !b.attached {
		b.mu.Unlock()
		return nil
	}
	unsubscribe := b.unsubscribe
	spaceID := b.spaceID
	bus := b.bus
	updater := b.updater
	b.mu.Unlock()

	// Stop new signals, then drain handlers before taking the write lock:
	// in-flight handlers acquire it themselves.
	unbindEmitter(spaceID)
	if unsubscribe != nil {
		unsubscribe()
	}
	bus.Flush()
	updater.Flush()
	bus.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// Flush blocks until pending change reactions have settled: handler
// cascades, queued reverse-link refreshes, and the cascades those refreshes
// cause in turn.
func (b *Backend) Flush() {
	b.mu.RLock()
	attached, bus, updater := b.attached, b.bus, b.updater
	b.mu.RUnlock()
	if !attached {
		return
	}
	for i := 0; i < 2; i++ {
		bus.Flush()
		updater.Flush()
	}
	bus.Flush()
}

// Tree returns the hierarchy store.
func (b *Backend) Tree() types.TreeStore { return b.tree }

// Views returns the saved-query store.
func (b *Backend) Views() types.ViewStore { return b.views }

// Docs returns the document content store.
func (b *Backend) Docs() types.DocStore { return b.docs }

// Files returns the blob store.
func (b *Backend) Files() types.FileStore { return b.files }

// Scripts returns the stored automation store.
func (b *Backend) Scripts() types.ScriptStore { return b.scripts }

// compute returns the recomputation service. Caller holds b.mu.
func (b *Backend) compute() *computeService {
	return &computeService{backend: b}
}

// ensureAttached is called under b.mu by store operations.
func (b *Backend) ensureAttached() error {
	if !b.attached {
		return types.ErrSpaceDetached
	}
	return nil
}

// refreshAllTriggers recreates the CDC triggers of every table-type node
// and every link join table. Caller holds b.mu.
func (b *Backend) refreshAllTriggers() error {
	nodes, err := b.tree.list(types.NodeListFilter{WithSubNodes: true})
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if n.Type != types.NodeTypeTable || n.IsDeleted {
			continue
		}
		if err := b.refreshTableTriggers(n.ID); err != nil {
			return err
		}
	}
	return nil
}

// refreshTableTriggers recreates the CDC triggers for one table and the
// join tables of its link fields. Caller holds b.mu.
func (b *Backend) refreshTableTriggers(tableID string) error {
	columns, err := b.physicalColumns(tableID)
	if err != nil {
		return err
	}
	raw := types.RawTableName(tableID)
	ddl := append(dropTriggerDDL(raw), createTriggerDDL(b.spaceID, raw, columns)...)

	fields, err := b.fields.list(tableID)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.Type != types.FieldTypeLink {
			continue
		}
		lk := types.LinkTableName(tableID, f.TableColumnName)
		ddl = append(ddl, dropTriggerDDL(lk)...)
		ddl = append(ddl, createTriggerDDL(b.spaceID, lk, linkTableColumns)...)
	}

	for _, stmt := range ddl {
		if _, err := b.adapter.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// physicalColumns returns the column list of a data table: the reserved
// system columns plus one column per user field. Caller holds b.mu.
func (b *Backend) physicalColumns(tableID string) ([]string, error) {
	columns := []string{
		types.ColumnRowID,
		types.ColumnTitle,
		types.ColumnCreatedTime,
		types.ColumnCreatedBy,
		types.ColumnLastEditedTime,
		types.ColumnLastEditedBy,
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		seen[c] = true
	}
	fields, err := b.fields.list(tableID)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		if !seen[f.TableColumnName] {
			seen[f.TableColumnName] = true
			columns = append(columns, f.TableColumnName)
		}
	}
	return columns, nil
}
