// Backend integration tests: full space lifecycle through the library API.
package integration

import (
	"encoding/json"
	"testing"

	"github.com/mesh-intelligence/fieldstone/internal/sqlite"
	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// setupSpace creates a backend attached to an isolated temp directory.
func setupSpace(t *testing.T) (*sqlite.Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b := sqlite.NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { b.Detach() })
	return b, dir
}

// TestSpaceSurvivesReattach verifies that tables, rows, derived values and
// views persist across a detach/attach cycle and that the change-capture
// machinery keeps working afterwards.
func TestSpaceSurvivesReattach(t *testing.T) {
	b, dir := setupSpace(t)

	node, err := b.CreateTable("inventory")
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	tm, err := b.Manager(node.ID)
	if err != nil {
		t.Fatalf("Manager: %v", err)
	}
	if _, err := tm.AddColumn(&types.Field{
		Name: "Count", Type: types.FieldTypeNumber, TableColumnName: "fld_count",
	}); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	prop, _ := json.Marshal(types.FormulaProperty{Expr: "fld_count * 10"})
	if _, err := tm.AddColumn(&types.Field{
		Name: "Scaled", Type: types.FieldTypeFormula,
		TableColumnName: "fld_scaled", Property: prop,
	}); err != nil {
		t.Fatalf("AddColumn formula: %v", err)
	}
	rowID, err := tm.AddRow(map[string]any{types.ColumnTitle: "widgets", "fld_count": 3})
	if err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	b.Flush()

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	b2 := sqlite.NewBackend()
	if err := b2.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
		t.Fatalf("re-Attach: %v", err)
	}
	t.Cleanup(func() { b2.Detach() })

	tm2, err := b2.Manager(node.ID)
	if err != nil {
		t.Fatalf("Manager after reattach: %v", err)
	}
	row, err := tm2.GetRow(rowID)
	if err != nil {
		t.Fatalf("GetRow after reattach: %v", err)
	}
	if got, _ := row["fld_scaled"].(float64); got != 30 {
		t.Errorf("expected persisted formula result 30, got %v", row["fld_scaled"])
	}

	// Triggers were recreated on reattach; mutations still recompute.
	if err := tm2.SetCell(rowID, "fld_count", 5); err != nil {
		t.Fatalf("SetCell after reattach: %v", err)
	}
	b2.Flush()
	row, err = tm2.GetRow(rowID)
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if got, _ := row["fld_scaled"].(float64); got != 50 {
		t.Errorf("expected recomputed value 50, got %v", row["fld_scaled"])
	}

	views, err := b2.Views().List(node.ID)
	if err != nil {
		t.Fatalf("Views().List: %v", err)
	}
	if len(views) != 1 || views[0].Name != types.DefaultViewName {
		t.Errorf("expected persisted default view, got %v", views)
	}
}

// TestLinkedTablesEndToEnd exercises the reactive reverse-link flow: linking
// rows populates the display cache, deleting a target row clears it.
func TestLinkedTablesEndToEnd(t *testing.T) {
	b, _ := setupSpace(t)

	taskNode, err := b.CreateTable("tasks")
	if err != nil {
		t.Fatalf("CreateTable tasks: %v", err)
	}
	peopleNode, err := b.CreateTable("people")
	if err != nil {
		t.Fatalf("CreateTable people: %v", err)
	}
	tasks, err := b.Manager(taskNode.ID)
	if err != nil {
		t.Fatalf("Manager tasks: %v", err)
	}
	people, err := b.Manager(peopleNode.ID)
	if err != nil {
		t.Fatalf("Manager people: %v", err)
	}

	prop, _ := json.Marshal(types.LinkProperty{LinkTableID: peopleNode.ID})
	if _, err := tasks.AddColumn(&types.Field{
		Name: "Owner", Type: types.FieldTypeLink,
		TableColumnName: "fld_owner", Property: prop,
	}); err != nil {
		t.Fatalf("AddColumn link: %v", err)
	}

	alice, err := people.AddRow(map[string]any{types.ColumnTitle: "Alice"})
	if err != nil {
		t.Fatalf("AddRow alice: %v", err)
	}
	taskID, err := tasks.AddRow(map[string]any{types.ColumnTitle: "review"})
	if err != nil {
		t.Fatalf("AddRow task: %v", err)
	}
	b.Flush()

	if err := tasks.SetCellLinks(taskID, "fld_owner", []string{alice}); err != nil {
		t.Fatalf("SetCellLinks: %v", err)
	}
	b.Flush()

	row, err := tasks.GetRow(taskID)
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if row["fld_owner"] != "Alice" {
		t.Errorf("expected display cache Alice, got %v", row["fld_owner"])
	}

	// Deleting the linked person propagates through the relation delete
	// signal into the cache.
	if err := people.DeleteRow(alice); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}
	b.Flush()

	row, err = tasks.GetRow(taskID)
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if row["fld_owner"] != nil {
		t.Errorf("expected cleared display cache, got %v", row["fld_owner"])
	}

	// The view membership check sees current row state.
	query := `SELECT * FROM "` + types.RawTableName(taskNode.ID) + `" WHERE title = 'review'`
	ok, err := b.Views().IsRowExistInQuery(taskNode.ID, taskID, query)
	if err != nil {
		t.Fatalf("IsRowExistInQuery: %v", err)
	}
	if !ok {
		t.Error("expected row to match its view query")
	}
}
