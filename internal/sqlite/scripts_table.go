package sqlite

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// ScriptsTable persists stored automation entries. Scripts are data here;
// nothing in the backend executes them.
type ScriptsTable struct {
	backend *Backend
}

var _ types.ScriptStore = (*ScriptsTable)(nil)

// Add stores a new script.
func (st *ScriptsTable) Add(script *types.Script) (*types.Script, error) {
	b := st.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	if script == nil || script.Name == "" {
		return nil, types.ErrInvalidData
	}
	if script.ID == "" {
		script.ID = types.NewEntityID()
	}
	now := time.Now().UTC()
	script.CreatedAt = now
	script.UpdatedAt = now
	_, err := b.adapter.Exec(
		`INSERT INTO scripts (id, name, code, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		script.ID, script.Name, script.Code, boolInt(script.Enabled),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("adding script %q: %w", script.Name, err)
	}
	return script, nil
}

// Get returns a script by id.
func (st *ScriptsTable) Get(id string) (*types.Script, error) {
	b := st.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	rows, err := b.adapter.Query(`SELECT * FROM scripts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("script %s: %w", id, types.ErrNotFound)
	}
	return scriptFromMap(rows[0])
}

// List returns all scripts ordered by name.
func (st *ScriptsTable) List() ([]*types.Script, error) {
	b := st.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	rows, err := b.adapter.Query(`SELECT * FROM scripts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	scripts := make([]*types.Script, 0, len(rows))
	for _, r := range rows {
		s, err := scriptFromMap(r)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// Delete removes a script.
func (st *ScriptsTable) Delete(id string) error {
	b := st.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	res, err := b.adapter.Exec(`DELETE FROM scripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting script %s: %w", id, err)
	}
	return requireAffected(res)
}

func scriptFromMap(r map[string]any) (*types.Script, error) {
	s := &types.Script{}
	s.ID, _ = r["id"].(string)
	s.Name, _ = r["name"].(string)
	s.Code, _ = r["code"].(string)
	if enabled, ok := r["enabled"].(int64); ok {
		s.Enabled = enabled != 0
	}
	var err error
	if t, ok := r["created_at"].(string); ok && t != "" {
		if s.CreatedAt, err = time.Parse(time.RFC3339, t); err != nil {
			return nil, fmt.Errorf("parsing script created_at: %w", err)
		}
	}
	if t, ok := r["updated_at"].(string); ok && t != "" {
		if s.UpdatedAt, err = time.Parse(time.RFC3339, t); err != nil {
			return nil, fmt.Errorf("parsing script updated_at: %w", err)
		}
	}
	return s, nil
}
