package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// maxSelectOptions caps the vocabulary generated when converting a column
// to a select type. A column with more distinct values than this is not a
// category column and the conversion is refused.
const maxSelectOptions = 300

// selectService handles select and multi-select vocabulary work: converting
// plain columns into option columns and editing the option set afterwards.
type selectService struct {
	backend *Backend
}

// convertToSelect turns an existing column into a select or multiSelect
// field. Every distinct stored value becomes an option, and cells are
// rewritten from literal text to option ids. Caller holds b.mu.
func (ss *selectService) convertToSelect(tm *TableManager, field *types.Field, target string) error {
	b := ss.backend
	raw := types.RawTableName(tm.tableID)

	rows, err := b.adapter.Query(fmt.Sprintf(
		`SELECT DISTINCT "%s" AS v FROM "%s" WHERE "%s" IS NOT NULL AND "%s" != ''`,
		field.TableColumnName, raw, field.TableColumnName, field.TableColumnName))
	if err != nil {
		return err
	}
	if len(rows) > maxSelectOptions {
		return fmt.Errorf("converting %s.%s: %d distinct values: %w",
			tm.tableID, field.Name, len(rows), types.ErrTooManyOptions)
	}

	prop := types.SelectProperty{Options: make([]types.SelectOption, 0, len(rows))}
	idByName := make(map[string]string, len(rows))
	for _, r := range rows {
		name := fmt.Sprint(r["v"])
		opt := types.SelectOption{ID: types.NewOptionID(), Name: name}
		prop.Options = append(prop.Options, opt)
		idByName[name] = opt.ID
	}
	propJSON, err := json.Marshal(prop)
	if err != nil {
		return err
	}

	// Single ids are also valid multiSelect cells: one comma-joined entry.
	for name, id := range idByName {
		if _, err := b.adapter.Exec(fmt.Sprintf(
			`UPDATE "%s" SET "%s" = ? WHERE "%s" = ?`,
			raw, field.TableColumnName, field.TableColumnName), id, name); err != nil {
			return fmt.Errorf("rewriting %s.%s values: %w", tm.tableID, field.Name, err)
		}
	}

	return b.fields.updateType(tm.tableID, field.TableColumnName, target, propJSON)
}

// renameOption changes an option's display name. Cells store option ids, so
// only the vocabulary needs touching. Caller holds b.mu.
func (ss *selectService) renameOption(tableID, tableColumnName, optionID, newName string) error {
	field, err := ss.backend.fields.get(tableID, tableColumnName)
	if err != nil {
		return err
	}
	prop, err := types.ParseSelectProperty(field)
	if err != nil {
		return err
	}
	found := false
	for i := range prop.Options {
		if prop.Options[i].ID == optionID {
			prop.Options[i].Name = newName
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("option %s on %s.%s: %w", optionID, tableID, field.Name, types.ErrNotFound)
	}
	propJSON, err := json.Marshal(prop)
	if err != nil {
		return err
	}
	return ss.backend.fields.updateProperty(tableID, tableColumnName, propJSON)
}

// deleteOption removes an option from the vocabulary and clears cells that
// referenced it. Caller holds b.mu.
func (ss *selectService) deleteOption(tableID, tableColumnName, optionID string) error {
	b := ss.backend
	field, err := b.fields.get(tableID, tableColumnName)
	if err != nil {
		return err
	}
	prop, err := types.ParseSelectProperty(field)
	if err != nil {
		return err
	}
	kept := prop.Options[:0]
	for _, opt := range prop.Options {
		if opt.ID != optionID {
			kept = append(kept, opt)
		}
	}
	if len(kept) == len(prop.Options) {
		return fmt.Errorf("option %s on %s.%s: %w", optionID, tableID, field.Name, types.ErrNotFound)
	}
	prop.Options = kept
	propJSON, err := json.Marshal(prop)
	if err != nil {
		return err
	}
	if err := b.fields.updateProperty(tableID, tableColumnName, propJSON); err != nil {
		return err
	}

	raw := types.RawTableName(tableID)
	if field.Type == types.FieldTypeMultiSelect {
		return ss.removeMultiSelectOption(raw, field.TableColumnName, optionID)
	}
	_, err = b.adapter.Exec(fmt.Sprintf(
		`UPDATE "%s" SET "%s" = NULL WHERE "%s" = ?`,
		raw, field.TableColumnName, field.TableColumnName), optionID)
	return err
}

// removeMultiSelectOption strips one option id out of every comma-joined
// cell that contains it.
func (ss *selectService) removeMultiSelectOption(rawTable, column, optionID string) error {
	b := ss.backend
	rows, err := b.adapter.Query(fmt.Sprintf(
		`SELECT _id, "%s" AS v FROM "%s" WHERE "%s" IS NOT NULL`, column, rawTable, column))
	if err != nil {
		return err
	}
	for _, r := range rows {
		text, ok := r["v"].(string)
		if !ok || text == "" {
			continue
		}
		ids := strings.Split(text, ",")
		kept := ids[:0]
		for _, id := range ids {
			if id != optionID {
				kept = append(kept, id)
			}
		}
		if len(kept) == len(ids) {
			continue
		}
		var stored any
		if len(kept) > 0 {
			stored = strings.Join(kept, ",")
		}
		if _, err := b.adapter.Exec(fmt.Sprintf(
			`UPDATE "%s" SET "%s" = ? WHERE _id = ?`, rawTable, column), stored, r["_id"]); err != nil {
			return err
		}
	}
	return nil
}
