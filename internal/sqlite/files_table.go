package sqlite

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// FilesTable persists blob content on disk under the space's files
// directory and tracks metadata in the files table.
type FilesTable struct {
	backend *Backend
	dir     string
}

var _ types.FileStore = (*FilesTable)(nil)

// AddFile writes the blob to disk and records its metadata. The stored path
// is prefixed with the file's id so repeated uploads of the same name do not
// collide.
func (ft *FilesTable) AddFile(name string, content []byte) (*types.File, error) {
	b := ft.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	if name == "" || strings.Contains(name, "..") {
		return nil, types.ErrInvalidData
	}

	id := types.NewEntityID()
	rel := filepath.Join(types.ShortID(id), filepath.Base(name))
	abs := filepath.Join(ft.dir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("creating file directory: %w", err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return nil, fmt.Errorf("writing file %s: %w", name, err)
	}

	now := time.Now().UTC()
	f := &types.File{
		ID:        id,
		Name:      filepath.Base(name),
		Path:      rel,
		Size:      int64(len(content)),
		MimeType:  mime.TypeByExtension(filepath.Ext(name)),
		CreatedAt: now,
	}
	_, err := b.adapter.Exec(
		`INSERT INTO files (id, name, path, size, mime_type, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Path, f.Size, f.MimeType, now.Format(time.RFC3339))
	if err != nil {
		if rmErr := os.Remove(abs); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("recording file %s (blob cleanup also failed: %v): %w", name, rmErr, err)
		}
		return nil, fmt.Errorf("recording file %s: %w", name, err)
	}
	return f, nil
}

// GetFileByPath reads blob content by its stored relative path.
func (ft *FilesTable) GetFileByPath(path string) ([]byte, error) {
	b := ft.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	if path == "" || strings.Contains(path, "..") {
		return nil, types.ErrInvalidData
	}
	content, err := os.ReadFile(filepath.Join(ft.dir, path))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file %s: %w", path, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return content, nil
}

// DeleteEntry removes a file or directory from the blob store together with
// the metadata rows that pointed into it.
func (ft *FilesTable) DeleteEntry(path string, isDir bool) error {
	b := ft.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	if path == "" || strings.Contains(path, "..") {
		return types.ErrInvalidData
	}

	abs := filepath.Join(ft.dir, path)
	if isDir {
		if err := os.RemoveAll(abs); err != nil {
			return fmt.Errorf("deleting directory %s: %w", path, err)
		}
		_, err := b.adapter.Exec(`DELETE FROM files WHERE path = ? OR path LIKE ?`, path, path+"/%")
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file %s: %w", path, err)
	}
	_, err := b.adapter.Exec(`DELETE FROM files WHERE path = ?`, path)
	return err
}

// Get returns file metadata by id.
func (ft *FilesTable) Get(id string) (*types.File, error) {
	b := ft.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	rows, err := b.adapter.Query(`SELECT * FROM files WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file %s: %w", id, types.ErrNotFound)
	}
	return fileFromMap(rows[0])
}

// List returns all file entries in upload order.
func (ft *FilesTable) List() ([]*types.File, error) {
	b := ft.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	rows, err := b.adapter.Query(`SELECT * FROM files ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	files := make([]*types.File, 0, len(rows))
	for _, r := range rows {
		f, err := fileFromMap(r)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func fileFromMap(r map[string]any) (*types.File, error) {
	f := &types.File{}
	f.ID, _ = r["id"].(string)
	f.Name, _ = r["name"].(string)
	f.Path, _ = r["path"].(string)
	if size, ok := r["size"].(int64); ok {
		f.Size = size
	}
	f.MimeType, _ = r["mime_type"].(string)
	if s, ok := r["created_at"].(string); ok && s != "" {
		var err error
		if f.CreatedAt, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, fmt.Errorf("parsing file created_at: %w", err)
		}
	}
	return f, nil
}
