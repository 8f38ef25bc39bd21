package sqlite

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// ViewTable provides access to saved queries.
type ViewTable struct {
	backend *Backend
}

var _ types.ViewStore = (*ViewTable)(nil)

// Add stores a new view. ID is assigned if empty; type defaults to grid.
func (vt *ViewTable) Add(view *types.View) (*types.View, error) {
	b := vt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	return vt.add(view)
}

func (vt *ViewTable) add(view *types.View) (*types.View, error) {
	if view == nil || view.TableID == "" || view.Name == "" || view.Query == "" {
		return nil, types.ErrInvalidView
	}
	if view.Type == "" {
		view.Type = types.ViewTypeGrid
	}
	if !types.IsValidViewType(view.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", types.ErrInvalidView, view.Type)
	}
	if view.ID == "" {
		view.ID = types.NewEntityID()
	}
	_, err := vt.backend.adapter.Exec(
		`INSERT INTO views (id, table_id, name, type, query, properties) VALUES (?, ?, ?, ?, ?, ?)`,
		view.ID, view.TableID, view.Name, view.Type, view.Query, propertyText(view.Properties))
	if err != nil {
		return nil, fmt.Errorf("adding view %q: %w", view.Name, err)
	}
	return view, nil
}

// CreateDefaultView seeds the grid view every new table starts with.
func (vt *ViewTable) CreateDefaultView(tableID string) (*types.View, error) {
	b := vt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	return vt.createDefaultView(tableID)
}

func (vt *ViewTable) createDefaultView(tableID string) (*types.View, error) {
	return vt.add(&types.View{
		TableID: tableID,
		Name:    types.DefaultViewName,
		Type:    types.ViewTypeGrid,
		Query:   fmt.Sprintf(`SELECT * FROM "%s"`, types.RawTableName(tableID)),
	})
}

// Get returns a view by id.
func (vt *ViewTable) Get(id string) (*types.View, error) {
	b := vt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	rows, err := b.adapter.Query(`SELECT * FROM views WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("view %s: %w", id, types.ErrNotFound)
	}
	return viewFromMap(rows[0]), nil
}

// List returns all views of a table in creation order.
func (vt *ViewTable) List(tableID string) ([]*types.View, error) {
	b := vt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	rows, err := b.adapter.Query(`SELECT * FROM views WHERE table_id = ? ORDER BY rowid`, tableID)
	if err != nil {
		return nil, err
	}
	views := make([]*types.View, 0, len(rows))
	for _, r := range rows {
		views = append(views, viewFromMap(r))
	}
	return views, nil
}

// UpdateQuery replaces a view's SQL text.
func (vt *ViewTable) UpdateQuery(id, query string) error {
	b := vt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	if query == "" {
		return types.ErrInvalidView
	}
	res, err := b.adapter.Exec(`UPDATE views SET query = ? WHERE id = ?`, query, id)
	if err != nil {
		return fmt.Errorf("updating view %s: %w", id, err)
	}
	return requireAffected(res)
}

// Delete removes a view.
func (vt *ViewTable) Delete(id string) error {
	b := vt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	res, err := b.adapter.Exec(`DELETE FROM views WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting view %s: %w", id, err)
	}
	return requireAffected(res)
}

// DeleteByTableID removes all views of a table. Used when the table is
// purged; zero views is not an error.
func (vt *ViewTable) DeleteByTableID(tableID string) error {
	b := vt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	return vt.deleteByTableID(tableID)
}

func (vt *ViewTable) deleteByTableID(tableID string) error {
	_, err := vt.backend.adapter.Exec(`DELETE FROM views WHERE table_id = ?`, tableID)
	return err
}

// IsRowExistInQuery reports whether a single row satisfies a view query. The
// query is evaluated against a one-row temp copy of the table rather than
// the full table, so the check stays cheap on large tables.
func (vt *ViewTable) IsRowExistInQuery(tableID, rowID, query string) (bool, error) {
	b := vt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return false, err
	}

	raw := types.RawTableName(tableID)
	if !strings.Contains(query, raw) {
		return false, fmt.Errorf("%w: query does not reference table %s", types.ErrInvalidView, tableID)
	}

	tmp := "tmp_" + types.ShortID(types.NewEntityID())
	_, err := b.adapter.Exec(fmt.Sprintf(
		`CREATE TEMP TABLE "%s" AS SELECT * FROM "%s" WHERE _id = ?`, tmp, raw), rowID)
	if err != nil {
		return false, fmt.Errorf("materializing row %s: %w", rowID, err)
	}
	defer func() {
		if _, dropErr := b.adapter.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, tmp)); dropErr != nil {
			log.Printf("sqlite: dropping temp table %s: %v", tmp, dropErr)
		}
	}()

	rewritten := strings.ReplaceAll(query, raw, tmp)
	rows, err := b.adapter.Query(rewritten)
	if err != nil {
		return false, fmt.Errorf("evaluating view query against row %s: %w", rowID, err)
	}
	return len(rows) > 0, nil
}

func viewFromMap(m map[string]any) *types.View {
	v := &types.View{}
	v.ID, _ = m["id"].(string)
	v.TableID, _ = m["table_id"].(string)
	v.Name, _ = m["name"].(string)
	v.Type, _ = m["type"].(string)
	v.Query, _ = m["query"].(string)
	if p, ok := m["properties"].(string); ok && p != "" {
		v.Properties = json.RawMessage(p)
	}
	return v
}
