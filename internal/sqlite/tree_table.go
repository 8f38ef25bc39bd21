package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

var _ types.TreeStore = (*TreeTable)(nil)

// TreeTable stores the hierarchical namespace of nodes (tables, documents,
// folders): parent/child links, position ordering, soft-delete flags. It
// owns the cycle-safety check for reparenting.
type TreeTable struct {
	backend *Backend
}

const nodeColumns = "id, name, type, parent_id, is_pinned, is_deleted, position, created_at, updated_at"

// Add inserts a node, assigning the next ordinal position derived from the
// maximum existing physical row id. Returns the node with the assigned
// position. An empty id is replaced with a generated one.
func (t *TreeTable) Add(node *types.Node) (*types.Node, error) {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.ensureAttached(); err != nil {
		return nil, err
	}
	return t.add(node)
}

func (t *TreeTable) add(node *types.Node) (*types.Node, error) {
	if node == nil || node.Name == "" {
		return nil, types.ErrInvalidNode
	}
	if !types.IsValidNodeType(node.Type) {
		return nil, fmt.Errorf("%w: unknown node type %q", types.ErrInvalidNode, node.Type)
	}
	if node.ID == "" {
		node.ID = types.NewEntityID()
	}

	position, err := t.nextPosition()
	if err != nil {
		return nil, err
	}
	node.Position = position
	now := time.Now().UTC()
	node.CreatedAt = now
	node.UpdatedAt = now

	_, err = t.backend.adapter.Exec(
		`INSERT INTO nodes (id, name, type, parent_id, is_pinned, is_deleted, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, node.Name, node.Type, node.ParentID, boolInt(node.IsPinned), boolInt(node.IsDeleted),
		node.Position, now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting node %q: %w", node.Name, err)
	}
	return node, nil
}

// nextPosition derives a strictly increasing ordinal from the maximum
// physical row id, so insertion order is stable.
func (t *TreeTable) nextPosition() (float64, error) {
	var max float64
	err := t.backend.db.QueryRow(`SELECT COALESCE(MAX(rowid), 0) FROM nodes`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("computing next node position: %w", err)
	}
	return max + 1, nil
}

// Get retrieves a node by exact id. Returns ErrNotFound if absent.
func (t *TreeTable) Get(id string) (*types.Node, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.ensureAttached(); err != nil {
		return nil, err
	}
	return t.get(id)
}

func (t *TreeTable) get(id string) (*types.Node, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	row := t.backend.db.QueryRow(
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	return scanNode(row)
}

// GetNode retrieves a node by exact id, or by the 8-character short-id
// suffix when the compact form is supplied. A suffix matching more than one
// node is reported as ErrAmbiguousID rather than silently picking one.
func (t *TreeTable) GetNode(idOrShortID string) (*types.Node, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.ensureAttached(); err != nil {
		return nil, err
	}
	return t.getNode(idOrShortID)
}

func (t *TreeTable) getNode(idOrShortID string) (*types.Node, error) {
	if idOrShortID == "" {
		return nil, types.ErrInvalidID
	}
	rows, err := t.backend.adapter.Query(
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ? OR substr(id, -?) = ?`,
		idOrShortID, types.ShortIDLength, idOrShortID)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, types.ErrNotFound
	case 1:
		return nodeFromMap(rows[0])
	default:
		return nil, fmt.Errorf("%w: %q has %d matches", types.ErrAmbiguousID, idOrShortID, len(rows))
	}
}

// List returns non-deleted nodes matching the filter, newest position first.
// Name matches without WithSubNodes are restricted to top-level nodes so a
// search does not flood with nested descendants of a matching parent.
func (t *TreeTable) List(filter types.NodeListFilter) ([]*types.Node, error) {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.ensureAttached(); err != nil {
		return nil, err
	}
	return t.list(filter)
}

func (t *TreeTable) list(filter types.NodeListFilter) ([]*types.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE is_deleted = 0`
	var args []any
	if filter.Query != "" {
		query += ` AND name LIKE ?`
		args = append(args, "%"+filter.Query+"%")
		if !filter.WithSubNodes {
			query += ` AND parent_id IS NULL`
		}
	}
	query += ` ORDER BY position DESC`

	rows, err := t.backend.adapter.Query(query, args...)
	if err != nil {
		return nil, err
	}
	nodes := make([]*types.Node, 0, len(rows))
	for _, r := range rows {
		n, err := nodeFromMap(r)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// UpdateName renames a node. Returns ErrNotFound for an unknown id.
func (t *TreeTable) UpdateName(id, name string) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.ensureAttached(); err != nil {
		return err
	}
	return t.updateName(id, name)
}

func (t *TreeTable) updateName(id, name string) error {
	if name == "" {
		return types.ErrInvalidNode
	}
	res, err := t.backend.adapter.Exec(
		`UPDATE nodes SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("renaming node %s: %w", id, err)
	}
	return requireAffected(res)
}

// Pin sets or clears the pinned flag.
func (t *TreeTable) Pin(id string, pinned bool) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.ensureAttached(); err != nil {
		return err
	}
	res, err := t.backend.adapter.Exec(
		`UPDATE nodes SET is_pinned = ?, updated_at = ? WHERE id = ?`,
		boolInt(pinned), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("pinning node %s: %w", id, err)
	}
	return requireAffected(res)
}

// Delete soft-deletes a node. The row is retained with is_deleted set;
// there is no undelete transition. Table nodes are purged separately by
// Backend.DeleteTable, which also drops their physical storage.
func (t *TreeTable) Delete(id string) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.ensureAttached(); err != nil {
		return err
	}
	res, err := t.backend.adapter.Exec(
		`UPDATE nodes SET is_deleted = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("deleting node %s: %w", id, err)
	}
	return requireAffected(res)
}

// purge physically removes a node row. Used by Backend.DeleteTable only.
func (t *TreeTable) purge(id string) error {
	_, err := t.backend.adapter.Exec(`DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("purging node %s: %w", id, err)
	}
	return nil
}

// MoveIntoTable reparents a node under a table: the parent pointer update,
// the removal of the node's row in the previous parent's storage, and the
// insertion of its row in the target table all apply in one transaction.
// CheckLoop guards the parent change first.
func (t *TreeTable) MoveIntoTable(nodeID, targetTableID string, previousParentID *string) error {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.backend.ensureAttached(); err != nil {
		return err
	}

	if err := t.checkLoop(nodeID, targetTableID); err != nil {
		return err
	}
	node, err := t.get(nodeID)
	if err != nil {
		return err
	}

	return t.backend.adapter.InTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`UPDATE nodes SET parent_id = ?, updated_at = ? WHERE id = ?`,
			targetTableID, time.Now().UTC().Format(time.RFC3339), nodeID); err != nil {
			return fmt.Errorf("reparenting node %s: %w", nodeID, err)
		}
		if previousParentID != nil {
			prevRaw := types.RawTableName(*previousParentID)
			if _, err := tx.Exec(
				fmt.Sprintf(`DELETE FROM "%s" WHERE _id = ?`, prevRaw), nodeID); err != nil {
				return fmt.Errorf("removing node row from %s: %w", prevRaw, err)
			}
		}
		raw := types.RawTableName(targetTableID)
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.Exec(
			fmt.Sprintf(`INSERT INTO "%s" (_id, title, _created_time, _last_edited_time) VALUES (?, ?, ?, ?)`, raw),
			nodeID, node.Name, now, now); err != nil {
			return fmt.Errorf("inserting node row into %s: %w", raw, err)
		}
		return nil
	})
}

// CheckLoop rejects a reparenting that would make nodeID an ancestor of its
// own new parent. Must be called before any parent change.
func (t *TreeTable) CheckLoop(nodeID, proposedParentID string) error {
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if err := t.backend.ensureAttached(); err != nil {
		return err
	}
	return t.checkLoop(nodeID, proposedParentID)
}

// checkLoop builds the parent-to-children adjacency list over all current
// nodes and searches depth-first from nodeID for proposedParentID. Finding
// it means the proposed parent is a descendant of the node, so the move
// would close a cycle. A full scan per check is acceptable at local,
// single-user scale.
func (t *TreeTable) checkLoop(nodeID, proposedParentID string) error {
	if nodeID == proposedParentID {
		return fmt.Errorf("%w: node %s cannot be its own parent", types.ErrCycleDetected, nodeID)
	}
	adjacency, err := t.adjacencyList()
	if err != nil {
		return err
	}
	visited := make(map[string]bool)
	if dfsReaches(adjacency, visited, nodeID, proposedParentID) {
		return fmt.Errorf("%w: %s is a descendant of %s", types.ErrCycleDetected, proposedParentID, nodeID)
	}
	return nil
}

// adjacencyList maps each parent id to its non-deleted children.
func (t *TreeTable) adjacencyList() (map[string][]string, error) {
	rows, err := t.backend.adapter.Query(
		`SELECT id, parent_id FROM nodes WHERE is_deleted = 0`)
	if err != nil {
		return nil, err
	}
	adjacency := make(map[string][]string, len(rows))
	for _, r := range rows {
		parent, _ := r["parent_id"].(string)
		if parent == "" {
			continue
		}
		id, _ := r["id"].(string)
		adjacency[parent] = append(adjacency[parent], id)
	}
	return adjacency, nil
}

// dfsReaches reports whether target is reachable from node along
// parent-to-child edges.
func dfsReaches(adjacency map[string][]string, visited map[string]bool, node, target string) bool {
	if node == target {
		return true
	}
	visited[node] = true
	for _, child := range adjacency[node] {
		if !visited[child] && dfsReaches(adjacency, visited, child, target) {
			return true
		}
	}
	return false
}

func scanNode(row *sql.Row) (*types.Node, error) {
	var n types.Node
	var parentID sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&n.ID, &n.Name, &n.Type, &parentID, &n.IsPinned, &n.IsDeleted,
		&n.Position, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning node: %w", err)
	}
	if parentID.Valid {
		n.ParentID = &parentID.String
	}
	n.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing node created_at: %w", err)
	}
	n.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing node updated_at: %w", err)
	}
	return &n, nil
}

// nodeFromMap converts a generic row map into a Node.
func nodeFromMap(r map[string]any) (*types.Node, error) {
	var n types.Node
	n.ID, _ = r["id"].(string)
	n.Name, _ = r["name"].(string)
	n.Type, _ = r["type"].(string)
	if p, ok := r["parent_id"].(string); ok && p != "" {
		n.ParentID = &p
	}
	if v, ok := r["is_pinned"].(int64); ok {
		n.IsPinned = v != 0
	}
	if v, ok := r["is_deleted"].(int64); ok {
		n.IsDeleted = v != 0
	}
	switch v := r["position"].(type) {
	case float64:
		n.Position = v
	case int64:
		n.Position = float64(v)
	}
	var err error
	if s, ok := r["created_at"].(string); ok && s != "" {
		if n.CreatedAt, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, fmt.Errorf("parsing node created_at: %w", err)
		}
	}
	if s, ok := r["updated_at"].(string); ok && s != "" {
		if n.UpdatedAt, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, fmt.Errorf("parsing node updated_at: %w", err)
		}
	}
	return &n, nil
}

// boolInt renders a bool as the 0/1 integer SQLite stores.
func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// requireAffected maps a zero-row update to ErrNotFound.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return types.ErrNotFound
	}
	return nil
}
