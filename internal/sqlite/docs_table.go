package sqlite

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// DocsTable provides access to document content.
type DocsTable struct {
	backend *Backend
}

var _ types.DocStore = (*DocsTable)(nil)

// Add stores a new document. When the id is preset (a promoted row reuses
// its row id) it is kept; otherwise a fresh id is assigned.
func (dt *DocsTable) Add(doc *types.Doc) (*types.Doc, error) {
	b := dt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, types.ErrInvalidData
	}
	if doc.ID == "" {
		doc.ID = types.NewEntityID()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	_, err := b.adapter.Exec(
		`INSERT INTO docs (id, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		doc.ID, doc.Content, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("adding doc %s: %w", doc.ID, err)
	}
	return doc, nil
}

// Get returns a document by id.
func (dt *DocsTable) Get(id string) (*types.Doc, error) {
	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	rows, err := b.adapter.Query(`SELECT * FROM docs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("doc %s: %w", id, types.ErrNotFound)
	}
	return docFromMap(rows[0])
}

// UpdateContent replaces a document's content.
func (dt *DocsTable) UpdateContent(id, content string) error {
	b := dt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	res, err := b.adapter.Exec(
		`UPDATE docs SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating doc %s: %w", id, err)
	}
	return requireAffected(res)
}

// Delete removes a document.
func (dt *DocsTable) Delete(id string) error {
	b := dt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	res, err := b.adapter.Exec(`DELETE FROM docs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting doc %s: %w", id, err)
	}
	return requireAffected(res)
}

func docFromMap(r map[string]any) (*types.Doc, error) {
	d := &types.Doc{}
	d.ID, _ = r["id"].(string)
	d.Content, _ = r["content"].(string)
	var err error
	if s, ok := r["created_at"].(string); ok && s != "" {
		if d.CreatedAt, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, fmt.Errorf("parsing doc created_at: %w", err)
		}
	}
	if s, ok := r["updated_at"].(string); ok && s != "" {
		if d.UpdatedAt, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, fmt.Errorf("parsing doc updated_at: %w", err)
		}
	}
	return d, nil
}
