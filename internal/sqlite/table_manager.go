package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

var _ types.TableStore = (*TableManager)(nil)

// TableManager is the per-table facade composing the field registry and the
// storage adapter: row CRUD, column CRUD, link-field resolution. Derived
// values are not computed here; writes flow through triggers to the change
// event bus and the recomputation engine reacts.
type TableManager struct {
	backend *Backend
	tableID string
	raw     string
}

// Manager returns the table manager for a table-type node.
func (b *Backend) Manager(tableID string) (types.TableStore, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	return b.manager(tableID)
}

func (b *Backend) manager(tableID string) (*TableManager, error) {
	node, err := b.tree.get(tableID)
	if err != nil {
		if err == types.ErrNotFound {
			return nil, types.ErrTableNotFound
		}
		return nil, err
	}
	if node.Type != types.NodeTypeTable {
		return nil, fmt.Errorf("%w: node %s is a %s", types.ErrTableNotFound, tableID, node.Type)
	}
	return &TableManager{backend: b, tableID: tableID, raw: types.RawTableName(tableID)}, nil
}

// CreateTable creates a table node, its physical storage, the reserved
// title field, a default grid view, and the change-capture triggers.
// All persistent writes apply in one transaction.
func (b *Backend) CreateTable(name string) (*types.Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, types.ErrInvalidNode
	}

	position, err := b.tree.nextPosition()
	if err != nil {
		return nil, err
	}
	node := &types.Node{
		ID:       types.NewEntityID(),
		Name:     name,
		Type:     types.NodeTypeTable,
		Position: position,
	}
	now := time.Now().UTC()
	node.CreatedAt = now
	node.UpdatedAt = now
	nowStr := now.Format(time.RFC3339)
	raw := types.RawTableName(node.ID)

	err = b.adapter.InTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO nodes (id, name, type, parent_id, is_pinned, is_deleted, position, created_at, updated_at)
			 VALUES (?, ?, ?, NULL, 0, 0, ?, ?, ?)`,
			node.ID, node.Name, node.Type, node.Position, nowStr, nowStr); err != nil {
			return fmt.Errorf("inserting table node %q: %w", name, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`CREATE TABLE "%s" (
    _id TEXT PRIMARY KEY,
    title TEXT,
    _created_time TEXT,
    _created_by TEXT,
    _last_edited_time TEXT,
    _last_edited_by TEXT
);`, raw)); err != nil {
			return fmt.Errorf("creating storage for table %q: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO fields (table_id, table_column_name, name, type, property, created_at)
			 VALUES (?, ?, ?, ?, NULL, ?)`,
			node.ID, types.ColumnTitle, "Title", types.FieldTypeTitle, nowStr); err != nil {
			return fmt.Errorf("seeding title field for table %q: %w", name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO views (id, table_id, name, type, query, properties)
			 VALUES (?, ?, ?, ?, ?, NULL)`,
			types.NewEntityID(), node.ID, types.DefaultViewName, types.ViewTypeGrid,
			"SELECT * FROM "+raw); err != nil {
			return fmt.Errorf("seeding default view for table %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := b.refreshTableTriggers(node.ID); err != nil {
		return nil, err
	}
	return node, nil
}

// DeleteTable drops a table's physical storage, its link join tables, and
// removes its node, fields and views. This is the purge transition: unlike
// doc and folder nodes, a deleted table leaves no soft-deleted row behind.
func (b *Backend) DeleteTable(tableID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	if _, err := b.manager(tableID); err != nil {
		return err
	}
	fields, err := b.fields.list(tableID)
	if err != nil {
		return err
	}

	return b.adapter.InTransaction(func(tx *sql.Tx) error {
		for _, f := range fields {
			if f.Type != types.FieldTypeLink {
				continue
			}
			lk := types.LinkTableName(tableID, f.TableColumnName)
			if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, lk)); err != nil {
				return fmt.Errorf("dropping join table %s: %w", lk, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, types.RawTableName(tableID))); err != nil {
			return fmt.Errorf("dropping storage of table %s: %w", tableID, err)
		}
		if _, err := tx.Exec(`DELETE FROM fields WHERE table_id = ?`, tableID); err != nil {
			return fmt.Errorf("deleting fields of table %s: %w", tableID, err)
		}
		if _, err := tx.Exec(`DELETE FROM views WHERE table_id = ?`, tableID); err != nil {
			return fmt.Errorf("deleting views of table %s: %w", tableID, err)
		}
		if _, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, tableID); err != nil {
			return fmt.Errorf("purging table node %s: %w", tableID, err)
		}
		return nil
	})
}

// TableID returns the logical table id.
func (tm *TableManager) TableID() string { return tm.tableID }

// AddRow inserts a row, optionally pre-seeding cell values (including _id).
// Returns the new row's id. Values are encoded per their field type; option
// vocabularies extended by the encode step are persisted alongside.
func (tm *TableManager) AddRow(initial map[string]any) (string, error) {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return "", err
	}

	rowID := types.NewEntityID()
	if v, ok := initial[types.ColumnRowID].(string); ok && v != "" {
		rowID = v
	}
	now := time.Now().UTC().Format(time.RFC3339)

	columns := []string{types.ColumnRowID, types.ColumnCreatedTime, types.ColumnLastEditedTime}
	args := []any{rowID, now, now}
	for col, value := range initial {
		if col == types.ColumnRowID {
			continue
		}
		field, err := b.fields.get(tm.tableID, col)
		if err != nil {
			return "", err
		}
		res, err := types.EncodeCell(field, value)
		if err != nil {
			return "", err
		}
		if res.PropertyChanged {
			if err := b.fields.updateProperty(tm.tableID, col, res.Property); err != nil {
				return "", err
			}
		}
		columns = append(columns, col)
		args = append(args, res.Raw)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + c + `"`
	}
	_, err := b.adapter.Exec(
		fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`, tm.raw, strings.Join(quoted, ", "), placeholders),
		args...)
	if err != nil {
		return "", fmt.Errorf("inserting row into %s: %w", tm.raw, err)
	}
	return rowID, nil
}

// GetRow returns one row's cell values decoded per field type, keyed by
// physical column name. System columns pass through as stored.
func (tm *TableManager) GetRow(rowID string) (map[string]any, error) {
	b := tm.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}

	rows, err := b.adapter.Query(
		fmt.Sprintf(`SELECT * FROM "%s" WHERE _id = ?`, tm.raw), rowID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.ErrNotFound
	}
	raw := rows[0]

	fields, err := b.fields.list(tm.tableID)
	if err != nil {
		return nil, err
	}
	decoded := make(map[string]any, len(raw))
	for col, value := range raw {
		decoded[col] = value
	}
	for _, f := range fields {
		value, err := types.DecodeCell(f, raw[f.TableColumnName])
		if err != nil {
			return nil, err
		}
		decoded[f.TableColumnName] = value
	}
	return decoded, nil
}

// Rows returns all rows with raw column values, insertion order.
func (tm *TableManager) Rows() ([]map[string]any, error) {
	b := tm.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	return b.adapter.Query(fmt.Sprintf(`SELECT * FROM "%s" ORDER BY rowid`, tm.raw))
}

// SetCell encodes one typed value and writes it to the row's physical
// column. An option-vocabulary side effect from the encode step is
// persisted to the field definition. Writing the title additionally renames
// the row's hierarchy node, if the row has been promoted to a document.
// Link fields are written through SetCellLinks.
func (tm *TableManager) SetCell(rowID, tableColumnName string, value any) error {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}

	field, err := b.fields.get(tm.tableID, tableColumnName)
	if err != nil {
		return err
	}
	if field.Type == types.FieldTypeLink {
		targets, ok := value.([]string)
		if !ok {
			return fmt.Errorf("setting link field %q: value must be a row id list, got %T",
				field.Name, value)
		}
		return b.links.setCellLinks(tm, field, rowID, targets)
	}

	res, err := types.EncodeCell(field, value)
	if err != nil {
		return err
	}
	if res.PropertyChanged {
		if err := b.fields.updateProperty(tm.tableID, tableColumnName, res.Property); err != nil {
			return err
		}
	}

	if err := tm.setRaw(rowID, tableColumnName, res.Raw); err != nil {
		return err
	}

	if field.Type == types.FieldTypeTitle {
		// Rows promoted to documents share their id with the hierarchy
		// node; keep the node's display name in step.
		name := ""
		if res.Raw != nil {
			name = fmt.Sprint(res.Raw)
		}
		if name != "" {
			if err := b.tree.updateName(rowID, name); err != nil && err != types.ErrNotFound {
				return err
			}
		}
	}
	return nil
}

// setRaw writes an already-encoded value. Caller holds the backend lock.
func (tm *TableManager) setRaw(rowID, tableColumnName string, raw any) error {
	res, err := tm.backend.adapter.Exec(
		fmt.Sprintf(`UPDATE "%s" SET "%s" = ?, _last_edited_time = ? WHERE _id = ?`,
			tm.raw, tableColumnName),
		raw, time.Now().UTC().Format(time.RFC3339), rowID)
	if err != nil {
		return fmt.Errorf("writing cell %s.%s: %w", tm.raw, tableColumnName, err)
	}
	return requireAffected(res)
}

// SetCellLinks replaces the relation set of a link cell.
func (tm *TableManager) SetCellLinks(rowID, tableColumnName string, targetRowIDs []string) error {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	field, err := b.fields.get(tm.tableID, tableColumnName)
	if err != nil {
		return err
	}
	return b.links.setCellLinks(tm, field, rowID, targetRowIDs)
}

// DeleteRow removes a row and its link relations, in one transaction. Join
// table deletions raise lk_ delete signals that drive the reverse-link
// cache refresh on referencing tables.
func (tm *TableManager) DeleteRow(rowID string) error {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}

	own, err := b.fields.list(tm.tableID)
	if err != nil {
		return err
	}
	targeting, err := b.fields.linkFieldsTargeting(tm.tableID)
	if err != nil {
		return err
	}

	return b.adapter.InTransaction(func(tx *sql.Tx) error {
		for _, f := range own {
			if f.Type != types.FieldTypeLink {
				continue
			}
			lk := types.LinkTableName(tm.tableID, f.TableColumnName)
			if _, err := tx.Exec(
				fmt.Sprintf(`DELETE FROM "%s" WHERE self_row_id = ?`, lk), rowID); err != nil {
				return fmt.Errorf("clearing relations of row %s in %s: %w", rowID, lk, err)
			}
		}
		for _, f := range targeting {
			lk := types.LinkTableName(f.TableID, f.TableColumnName)
			if _, err := tx.Exec(
				fmt.Sprintf(`DELETE FROM "%s" WHERE target_row_id = ?`, lk), rowID); err != nil {
				return fmt.Errorf("clearing references to row %s in %s: %w", rowID, lk, err)
			}
		}
		res, err := tx.Exec(fmt.Sprintf(`DELETE FROM "%s" WHERE _id = ?`, tm.raw), rowID)
		if err != nil {
			return fmt.Errorf("deleting row %s from %s: %w", rowID, tm.raw, err)
		}
		return requireAffected(res)
	})
}

// Fields returns the table's field definitions.
func (tm *TableManager) Fields() ([]*types.Field, error) {
	b := tm.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	return b.fields.list(tm.tableID)
}

// Field returns one field definition by physical column name.
func (tm *TableManager) Field(tableColumnName string) (*types.Field, error) {
	b := tm.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}
	return b.fields.get(tm.tableID, tableColumnName)
}

// AddColumn adds a field definition and its physical column. Link fields
// additionally get a join table; a second title field is rejected. The
// table's triggers are recreated to cover the new column.
func (tm *TableManager) AddColumn(field *types.Field) (*types.Field, error) {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return nil, err
	}

	field.TableID = tm.tableID
	if field.TableColumnName == "" {
		field.TableColumnName = "fld_" + types.ShortID(types.NewEntityID())
	}
	if field.Type == types.FieldTypeTitle {
		return nil, fmt.Errorf("adding field %q: %w", field.Name, types.ErrDuplicateTitle)
	}

	if err := b.fields.add(field); err != nil {
		return nil, err
	}
	if _, err := b.adapter.Exec(
		fmt.Sprintf(`ALTER TABLE "%s" ADD COLUMN "%s"`, tm.raw, field.TableColumnName)); err != nil {
		return nil, err
	}
	if field.Type == types.FieldTypeLink {
		if err := b.links.createJoinTable(tm.tableID, field.TableColumnName); err != nil {
			return nil, err
		}
	}
	if err := b.refreshTableTriggers(tm.tableID); err != nil {
		return nil, err
	}

	if field.Type == types.FieldTypeFormula {
		if err := b.compute().recomputeFormulaColumn(tm, field); err != nil {
			return nil, err
		}
	}
	return field, nil
}

// DeleteField removes a field definition and drops its physical column.
// Formula fields are unregistered from the dependency map by the meta
// delete before the drop; link fields lose their join table. The reserved
// title field cannot be deleted.
func (tm *TableManager) DeleteField(tableColumnName string) error {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}

	field, err := b.fields.get(tm.tableID, tableColumnName)
	if err != nil {
		return err
	}
	if field.Type == types.FieldTypeTitle {
		return fmt.Errorf("deleting field %q: the title field is reserved", field.Name)
	}

	if err := b.fields.delete(tm.tableID, tableColumnName); err != nil {
		return err
	}
	if field.Type == types.FieldTypeLink {
		lk := types.LinkTableName(tm.tableID, tableColumnName)
		for _, stmt := range dropTriggerDDL(lk) {
			if _, err := b.adapter.Exec(stmt); err != nil {
				return err
			}
		}
		if _, err := b.adapter.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, lk)); err != nil {
			return err
		}
	}
	if _, err := b.adapter.Exec(
		fmt.Sprintf(`ALTER TABLE "%s" DROP COLUMN "%s"`, tm.raw, tableColumnName)); err != nil {
		return err
	}
	return b.refreshTableTriggers(tm.tableID)
}

// UpdateColumnProperty persists a field's type-specific configuration. For
// formula fields a changed expression invalidates every cached result, so
// one full recomputation pass runs over the column.
func (tm *TableManager) UpdateColumnProperty(tableColumnName string, property []byte) error {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}

	if err := b.fields.updateProperty(tm.tableID, tableColumnName, property); err != nil {
		return err
	}
	field, err := b.fields.get(tm.tableID, tableColumnName)
	if err != nil {
		return err
	}
	if field.Type == types.FieldTypeFormula {
		return b.compute().recomputeFormulaColumn(tm, field)
	}
	return nil
}

// ConvertFieldType changes a field's type in place. Conversions into select
// types run the option-ceiling guard over existing values and seed the
// vocabulary from them.
func (tm *TableManager) ConvertFieldType(tableColumnName, newType string) error {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}

	field, err := b.fields.get(tm.tableID, tableColumnName)
	if err != nil {
		return err
	}
	if field.Type == newType {
		return nil
	}
	switch newType {
	case types.FieldTypeSelect, types.FieldTypeMultiSelect:
		return b.selects.convertToSelect(tm, field, newType)
	default:
		return b.fields.updateType(tm.tableID, tableColumnName, newType, nil)
	}
}

// RenameSelectOption changes an option's display name in the field's
// vocabulary. Cells store option ids, so no cell rewrite is needed.
func (tm *TableManager) RenameSelectOption(tableColumnName, optionID, newName string) error {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	return b.selects.renameOption(tm.tableID, tableColumnName, optionID, newName)
}

// DeleteSelectOption removes an option from the vocabulary and clears
// every cell that referenced it.
func (tm *TableManager) DeleteSelectOption(tableColumnName, optionID string) error {
	b := tm.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	return b.selects.deleteOption(tm.tableID, tableColumnName, optionID)
}
