package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// FieldsTable persists field definitions: the typed schema layer over the
// physical columns of every data table. The table manager is its only
// caller, under the backend lock.
type FieldsTable struct {
	backend *Backend
}

const fieldColumns = "table_id, table_column_name, name, type, property, created_at"

func (ft *FieldsTable) add(field *types.Field) error {
	if field.Name == "" || field.TableID == "" || field.TableColumnName == "" {
		return types.ErrInvalidData
	}
	if !types.IsValidFieldType(field.Type) {
		return fmt.Errorf("adding field %q: %w: %s", field.Name, types.ErrUnknownFieldType, field.Type)
	}
	if field.CreatedAt == "" {
		field.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := ft.backend.adapter.Exec(
		`INSERT INTO fields (table_id, table_column_name, name, type, property, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		field.TableID, field.TableColumnName, field.Name, field.Type,
		propertyText(field.Property), field.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting field %q: %w", field.Name, err)
	}
	return nil
}

func (ft *FieldsTable) get(tableID, tableColumnName string) (*types.Field, error) {
	rows, err := ft.backend.adapter.Query(
		`SELECT `+fieldColumns+` FROM fields WHERE table_id = ? AND table_column_name = ?`,
		tableID, tableColumnName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("field %s.%s: %w", tableID, tableColumnName, types.ErrFieldNotFound)
	}
	return fieldFromMap(rows[0]), nil
}

func (ft *FieldsTable) list(tableID string) ([]*types.Field, error) {
	rows, err := ft.backend.adapter.Query(
		`SELECT `+fieldColumns+` FROM fields WHERE table_id = ? ORDER BY created_at, table_column_name`,
		tableID)
	if err != nil {
		return nil, err
	}
	fields := make([]*types.Field, 0, len(rows))
	for _, r := range rows {
		fields = append(fields, fieldFromMap(r))
	}
	return fields, nil
}

func (ft *FieldsTable) updateProperty(tableID, tableColumnName string, property json.RawMessage) error {
	res, err := ft.backend.adapter.Exec(
		`UPDATE fields SET property = ? WHERE table_id = ? AND table_column_name = ?`,
		propertyText(property), tableID, tableColumnName)
	if err != nil {
		return fmt.Errorf("updating property of %s.%s: %w", tableID, tableColumnName, err)
	}
	return requireAffected(res)
}

func (ft *FieldsTable) updateType(tableID, tableColumnName, fieldType string, property json.RawMessage) error {
	if !types.IsValidFieldType(fieldType) {
		return fmt.Errorf("%w: %s", types.ErrUnknownFieldType, fieldType)
	}
	res, err := ft.backend.adapter.Exec(
		`UPDATE fields SET type = ?, property = ? WHERE table_id = ? AND table_column_name = ?`,
		fieldType, propertyText(property), tableID, tableColumnName)
	if err != nil {
		return fmt.Errorf("updating type of %s.%s: %w", tableID, tableColumnName, err)
	}
	return requireAffected(res)
}

func (ft *FieldsTable) updateName(tableID, tableColumnName, name string) error {
	if name == "" {
		return types.ErrInvalidData
	}
	res, err := ft.backend.adapter.Exec(
		`UPDATE fields SET name = ? WHERE table_id = ? AND table_column_name = ?`,
		name, tableID, tableColumnName)
	if err != nil {
		return fmt.Errorf("renaming field %s.%s: %w", tableID, tableColumnName, err)
	}
	return requireAffected(res)
}

func (ft *FieldsTable) delete(tableID, tableColumnName string) error {
	res, err := ft.backend.adapter.Exec(
		`DELETE FROM fields WHERE table_id = ? AND table_column_name = ?`,
		tableID, tableColumnName)
	if err != nil {
		return fmt.Errorf("deleting field %s.%s: %w", tableID, tableColumnName, err)
	}
	return requireAffected(res)
}

func (ft *FieldsTable) deleteByTableID(tableID string) error {
	_, err := ft.backend.adapter.Exec(`DELETE FROM fields WHERE table_id = ?`, tableID)
	if err != nil {
		return fmt.Errorf("deleting fields of table %s: %w", tableID, err)
	}
	return nil
}

// linkFieldsTargeting returns all link fields (across every table) whose
// relation targets the given table. Used for reverse-link cleanup when the
// target table's rows are deleted.
func (ft *FieldsTable) linkFieldsTargeting(tableID string) ([]*types.Field, error) {
	rows, err := ft.backend.adapter.Query(
		`SELECT `+fieldColumns+` FROM fields WHERE type = ?`, types.FieldTypeLink)
	if err != nil {
		return nil, err
	}
	var out []*types.Field
	for _, r := range rows {
		f := fieldFromMap(r)
		prop, err := types.ParseLinkProperty(f)
		if err != nil {
			return nil, err
		}
		if prop.LinkTableID == tableID {
			out = append(out, f)
		}
	}
	return out, nil
}

func fieldFromMap(r map[string]any) *types.Field {
	f := &types.Field{}
	f.TableID, _ = r["table_id"].(string)
	f.TableColumnName, _ = r["table_column_name"].(string)
	f.Name, _ = r["name"].(string)
	f.Type, _ = r["type"].(string)
	if p, ok := r["property"].(string); ok && p != "" {
		f.Property = json.RawMessage(p)
	}
	f.CreatedAt, _ = r["created_at"].(string)
	return f
}

// propertyText renders a property for storage; empty properties store NULL.
func propertyText(p json.RawMessage) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}
