package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// linkTableColumns is the fixed shape of a link join table: one row per
// (referencing row, referenced row) pair.
var linkTableColumns = []string{"self_row_id", "target_row_id"}

// linkService maintains link-field relations: the lk_ join tables, the
// denormalized display cache column on the referencing table, and the
// reverse-link cleanup that runs when relation rows are deleted.
type linkService struct {
	backend *Backend
}

// createJoinTable creates the lk_ join table for a link field, with CDC
// triggers so relation deletions reach the recomputation engine.
// Caller holds b.mu.
func (ls *linkService) createJoinTable(tableID, tableColumnName string) error {
	lk := types.LinkTableName(tableID, tableColumnName)
	_, err := ls.backend.adapter.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (
    self_row_id TEXT NOT NULL,
    target_row_id TEXT NOT NULL,
    PRIMARY KEY (self_row_id, target_row_id)
);`, lk))
	if err != nil {
		return fmt.Errorf("creating join table %s: %w", lk, err)
	}
	ddl := append(dropTriggerDDL(lk), createTriggerDDL(ls.backend.spaceID, lk, linkTableColumns)...)
	for _, stmt := range ddl {
		if _, err := ls.backend.adapter.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// setCellLinks replaces a link cell's relation set and rewrites its display
// cache, in one transaction. Caller holds b.mu.
func (ls *linkService) setCellLinks(tm *TableManager, field *types.Field, rowID string, targetRowIDs []string) error {
	prop, err := types.ParseLinkProperty(field)
	if err != nil {
		return err
	}
	if prop.LinkTableID == "" {
		return fmt.Errorf("link field %q has no target table", field.Name)
	}
	lk := types.LinkTableName(tm.tableID, field.TableColumnName)

	err = ls.backend.adapter.InTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			fmt.Sprintf(`DELETE FROM "%s" WHERE self_row_id = ?`, lk), rowID); err != nil {
			return fmt.Errorf("clearing relations in %s: %w", lk, err)
		}
		for _, target := range targetRowIDs {
			if _, err := tx.Exec(
				fmt.Sprintf(`INSERT INTO "%s" (self_row_id, target_row_id) VALUES (?, ?)`, lk),
				rowID, target); err != nil {
				return fmt.Errorf("linking %s to %s in %s: %w", rowID, target, lk, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Rewrite the display cache in the same call so the mutator reads its
	// own write; the trigger-driven refresh that follows is a no-op.
	return ls.refreshCellLocked(tm.tableID, field.TableColumnName, rowID)
}

// queueRefreshForDeletedRelation resolves a deleted lk_ row to the cell
// whose display cache it backed and queues that cell for refresh. The join
// table name encodes the (table, field) pair, so resolution is a parse, and
// the batching updater deduplicates overlapping signals.
func (ls *linkService) queueRefreshForDeletedRelation(lkTable string, oldRow map[string]any) {
	tableID, column, ok := types.ParseLinkTableName(lkTable)
	if !ok {
		return
	}
	selfRowID, _ := oldRow["self_row_id"].(string)
	if selfRowID == "" {
		return
	}
	ls.backend.updater.AddCell(tableID, column, selfRowID)
}

// refreshCell recomputes one reverse-link display cache cell: the titles of
// the rows still linked, joined for display.
func (ls *linkService) refreshCell(tableID, column, rowID string) error {
	b := ls.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureAttached(); err != nil {
		return err
	}
	return ls.refreshCellLocked(tableID, column, rowID)
}

func (ls *linkService) refreshCellLocked(tableID, column, rowID string) error {
	b := ls.backend
	field, err := b.fields.get(tableID, column)
	if err != nil {
		return err
	}
	prop, err := types.ParseLinkProperty(field)
	if err != nil {
		return err
	}
	lk := types.LinkTableName(tableID, column)
	targetRaw := types.RawTableName(prop.LinkTableID)

	rows, err := b.adapter.Query(fmt.Sprintf(
		`SELECT t.title AS title FROM "%s" l JOIN "%s" t ON t._id = l.target_row_id
		 WHERE l.self_row_id = ? ORDER BY t.rowid`, lk, targetRaw), rowID)
	if err != nil {
		return err
	}
	titles := make([]string, 0, len(rows))
	for _, r := range rows {
		if title, ok := r["title"].(string); ok && title != "" {
			titles = append(titles, title)
		}
	}

	var display any
	if len(titles) > 0 {
		display = strings.Join(titles, ", ")
	}
	_, err = b.adapter.Exec(
		fmt.Sprintf(`UPDATE "%s" SET "%s" = ? WHERE _id = ?`, types.RawTableName(tableID), column),
		display, rowID)
	if err != nil {
		return fmt.Errorf("writing display cache %s.%s: %w", tableID, column, err)
	}
	return nil
}
