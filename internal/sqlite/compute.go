package sqlite

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// dataChangeHandler is the bus subscriber that reacts to row mutations:
// it recomputes formula cells whose dependencies changed and queues
// reverse-link cache refreshes when relation rows disappear. It runs on
// handler goroutines, after the originating mutation committed; its
// failures are logged, never propagated back to the mutator.
type dataChangeHandler struct {
	backend *Backend
}

func (h *dataChangeHandler) handle(sig types.ChangeSignal) {
	switch sig.Type {
	case types.SignalInsert, types.SignalUpdate:
		tableID, ok := types.TableIDFromRawName(sig.Table)
		if !ok {
			return
		}
		diff := types.Diff(sig.Old, sig.New)
		if len(diff) == 0 {
			return
		}
		rowID, _ := sig.New[types.ColumnRowID].(string)
		if rowID == "" {
			return
		}
		keys := make([]string, 0, len(diff))
		for k := range diff {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		h.backend.compute().updateEffectCells(tableID, rowID, keys)

	case types.SignalDelete:
		if !types.IsLinkTable(sig.Table) {
			return
		}
		h.backend.links.queueRefreshForDeletedRelation(sig.Table, sig.Old)
	}
}

// computeService resolves which derived cells a mutation affects and
// re-executes their computation.
type computeService struct {
	backend *Backend
}

// updateEffectCells recomputes every formula cell of the row whose declared
// dependencies intersect the changed columns. Each cell is attempted
// independently: one formula's failure leaves it stale but does not abort
// its siblings. Recomputation is idempotent — rewriting an unchanged value
// produces an empty diff downstream, which bounds cascades to the true
// dependency chain length.
func (c *computeService) updateEffectCells(tableID, rowID string, changedColumns []string) {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ensureAttached() != nil {
		return
	}

	tm, err := b.manager(tableID)
	if err != nil {
		log.Printf("sqlite: recompute lookup for %s failed: %v", tableID, err)
		return
	}
	fields, err := b.fields.list(tableID)
	if err != nil {
		log.Printf("sqlite: recompute field list for %s failed: %v", tableID, err)
		return
	}
	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, f.TableColumnName)
	}

	changed := make(map[string]bool, len(changedColumns))
	for _, col := range changedColumns {
		changed[col] = true
	}

	for _, f := range fields {
		if f.Type != types.FieldTypeFormula {
			continue
		}
		prop, err := types.ParseFormulaProperty(f)
		if err != nil || prop.Expr == "" {
			continue
		}
		affected := false
		for _, dep := range extractColumnRefs(prop.Expr, columns) {
			if changed[dep] {
				affected = true
				break
			}
		}
		if !affected {
			continue
		}
		if err := c.recomputeCell(tm, f, prop.Expr, rowID); err != nil {
			log.Printf("sqlite: recompute of %s.%s for row %s failed: %v",
				tm.raw, f.TableColumnName, rowID, err)
		}
	}
}

// recomputeCell re-evaluates one formula cell in place. Caller holds b.mu.
func (c *computeService) recomputeCell(tm *TableManager, field *types.Field, expr, rowID string) error {
	_, err := c.backend.adapter.Exec(
		fmt.Sprintf(`UPDATE "%s" SET "%s" = (%s) WHERE _id = ?`, tm.raw, field.TableColumnName, expr),
		rowID)
	if err != nil {
		return fmt.Errorf("evaluating formula %q: %w", expr, err)
	}
	return nil
}

// recomputeFormulaColumn re-evaluates a formula over every existing row.
// Used when a formula expression changes or a formula column is added:
// previously cached results are all invalid. Caller holds b.mu.
func (c *computeService) recomputeFormulaColumn(tm *TableManager, field *types.Field) error {
	prop, err := types.ParseFormulaProperty(field)
	if err != nil {
		return err
	}
	if prop.Expr == "" {
		return nil
	}
	_, err = c.backend.adapter.Exec(
		fmt.Sprintf(`UPDATE "%s" SET "%s" = (%s)`, tm.raw, field.TableColumnName, prop.Expr))
	if err != nil {
		return fmt.Errorf("evaluating formula %q over %s: %w", prop.Expr, tm.raw, err)
	}
	return nil
}

// cellRef identifies one reverse-link cell pending refresh.
type cellRef struct {
	tableID string
	column  string
	rowID   string
}

// linkRelationUpdater batches reverse-link display cache refreshes.
// Relation deletions arrive in bursts (cascading deletes); queueing
// deduplicates by (table, field, row) so each affected cell refreshes once
// per burst instead of once per signal.
type linkRelationUpdater struct {
	backend *Backend

	mu      sync.Mutex
	pending map[cellRef]struct{}
	timer   *time.Timer
}

// flushDelay is how long the updater coalesces refreshes before flushing.
const flushDelay = 20 * time.Millisecond

func newLinkRelationUpdater(b *Backend) *linkRelationUpdater {
	return &linkRelationUpdater{backend: b, pending: make(map[cellRef]struct{})}
}

// AddCell queues one cell for refresh. Duplicate triples collapse.
func (u *linkRelationUpdater) AddCell(tableID, column, rowID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending[cellRef{tableID: tableID, column: column, rowID: rowID}] = struct{}{}
	if u.timer == nil {
		u.timer = time.AfterFunc(flushDelay, u.Flush)
	}
}

// Flush refreshes every queued cell now. Failures are logged per cell and
// do not abort the rest of the batch.
func (u *linkRelationUpdater) Flush() {
	u.mu.Lock()
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
	pending := u.pending
	u.pending = make(map[cellRef]struct{})
	u.mu.Unlock()

	for ref := range pending {
		if err := u.backend.links.refreshCell(ref.tableID, ref.column, ref.rowID); err != nil {
			log.Printf("sqlite: reverse-link refresh of %s.%s row %s failed: %v",
				ref.tableID, ref.column, ref.rowID, err)
		}
	}
}

// PendingCount reports the queue depth. Used by tests.
func (u *linkRelationUpdater) PendingCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending)
}
