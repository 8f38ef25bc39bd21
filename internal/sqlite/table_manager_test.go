package sqlite

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// tableExists reports whether a physical table is present in the database.
func tableExists(t *testing.T, b *Backend, name string) bool {
	t.Helper()
	rows, err := b.adapter.Query(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	require.NoError(t, err)
	return len(rows) > 0
}

func TestCreateTableSeedsTitleFieldAndDefaultView(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	assert.Equal(t, types.NodeTypeTable, node.Type)
	assert.True(t, tableExists(t, b, types.RawTableName(node.ID)))

	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	title, err := tm.Field(types.ColumnTitle)
	require.NoError(t, err)
	assert.Equal(t, types.FieldTypeTitle, title.Type)

	views, err := b.Views().List(node.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, types.DefaultViewName, views[0].Name)
	assert.Equal(t, types.ViewTypeGrid, views[0].Type)
}

func TestManagerRejectsNonTables(t *testing.T) {
	b := setupBackend(t)

	_, err := b.Manager("nope")
	assert.ErrorIs(t, err, types.ErrTableNotFound)

	doc, err := b.Tree().Add(&types.Node{Name: "a doc", Type: types.NodeTypeDoc})
	require.NoError(t, err)
	_, err = b.Manager(doc.ID)
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestDeleteTablePurgesEverything(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("ephemeral")
	require.NoError(t, err)
	raw := types.RawTableName(node.ID)

	require.NoError(t, b.DeleteTable(node.ID))

	assert.False(t, tableExists(t, b, raw))
	_, err = b.Tree().Get(node.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	views, err := b.Views().List(node.ID)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestAddRowAndGetRow(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	_, err = tm.AddColumn(&types.Field{
		Name: "Score", Type: types.FieldTypeNumber, TableColumnName: "fld_score",
	})
	require.NoError(t, err)

	rowID, err := tm.AddRow(map[string]any{
		types.ColumnTitle: "write tests",
		"fld_score":       42,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rowID)
	b.Flush()

	row, err := tm.GetRow(rowID)
	require.NoError(t, err)
	assert.Equal(t, "write tests", row[types.ColumnTitle])
	assert.Equal(t, 42.0, row["fld_score"])
	assert.NotEmpty(t, row[types.ColumnCreatedTime])

	_, err = tm.GetRow("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddRowHonorsPresetID(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	want := types.NewEntityID()
	got, err := tm.AddRow(map[string]any{
		types.ColumnRowID: want,
		types.ColumnTitle: "pinned id",
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetCellPersistsSelectVocabulary(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	_, err = tm.AddColumn(&types.Field{
		Name: "Status", Type: types.FieldTypeSelect, TableColumnName: "fld_status",
	})
	require.NoError(t, err)

	rowID, err := tm.AddRow(nil)
	require.NoError(t, err)
	require.NoError(t, tm.SetCell(rowID, "fld_status", "in progress"))
	b.Flush()

	// The option minted during encode is persisted on the field.
	field, err := tm.Field("fld_status")
	require.NoError(t, err)
	prop, err := types.ParseSelectProperty(field)
	require.NoError(t, err)
	require.Len(t, prop.Options, 1)
	assert.Equal(t, "in progress", prop.Options[0].Name)

	// The cell decodes back to the option name.
	row, err := tm.GetRow(rowID)
	require.NoError(t, err)
	assert.Equal(t, "in progress", row["fld_status"])

	// Reusing the name does not mint a second option.
	other, err := tm.AddRow(nil)
	require.NoError(t, err)
	require.NoError(t, tm.SetCell(other, "fld_status", "in progress"))
	b.Flush()
	field, err = tm.Field("fld_status")
	require.NoError(t, err)
	prop, err = types.ParseSelectProperty(field)
	require.NoError(t, err)
	assert.Len(t, prop.Options, 1)
}

func TestSetCellTitleRenamesPromotedNode(t *testing.T) {
	b := setupBackend(t)

	table, err := b.CreateTable("inbox")
	require.NoError(t, err)
	doc, err := b.Tree().Add(&types.Node{Name: "old name", Type: types.NodeTypeDoc})
	require.NoError(t, err)
	require.NoError(t, b.Tree().MoveIntoTable(doc.ID, table.ID, nil))
	b.Flush()

	tm, err := b.Manager(table.ID)
	require.NoError(t, err)
	require.NoError(t, tm.SetCell(doc.ID, types.ColumnTitle, "new name"))
	b.Flush()

	got, err := b.Tree().Get(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "new name", got.Name)
}

func TestSetCellMissingRow(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	err = tm.SetCell("missing", types.ColumnTitle, "x")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddColumnGeneratesColumnName(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	field, err := tm.AddColumn(&types.Field{Name: "Notes", Type: types.FieldTypeText})
	require.NoError(t, err)
	assert.Regexp(t, `^fld_[0-9a-f]{8}$`, field.TableColumnName)
}

func TestAddColumnRejectsSecondTitle(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	_, err = tm.AddColumn(&types.Field{Name: "Another Title", Type: types.FieldTypeTitle})
	assert.ErrorIs(t, err, types.ErrDuplicateTitle)
}

func TestAddAndDeleteLinkColumn(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	target, err := b.CreateTable("people")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	prop, err := json.Marshal(types.LinkProperty{LinkTableID: target.ID})
	require.NoError(t, err)
	_, err = tm.AddColumn(&types.Field{
		Name: "Assignee", Type: types.FieldTypeLink,
		TableColumnName: "fld_assignee", Property: prop,
	})
	require.NoError(t, err)

	lk := types.LinkTableName(node.ID, "fld_assignee")
	assert.True(t, tableExists(t, b, lk))

	require.NoError(t, tm.DeleteField("fld_assignee"))
	assert.False(t, tableExists(t, b, lk))
	_, err = tm.Field("fld_assignee")
	assert.ErrorIs(t, err, types.ErrFieldNotFound)
}

func TestDeleteFieldKeepsTitle(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	err = tm.DeleteField(types.ColumnTitle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestFormulaRecomputesOnDependencyChange(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("numbers")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	_, err = tm.AddColumn(&types.Field{
		Name: "Value", Type: types.FieldTypeNumber, TableColumnName: "fld_value",
	})
	require.NoError(t, err)
	prop, err := json.Marshal(types.FormulaProperty{Expr: "fld_value * 2"})
	require.NoError(t, err)
	_, err = tm.AddColumn(&types.Field{
		Name: "Doubled", Type: types.FieldTypeFormula,
		TableColumnName: "fld_doubled", Property: prop,
	})
	require.NoError(t, err)

	rowID, err := tm.AddRow(map[string]any{"fld_value": 5})
	require.NoError(t, err)
	otherID, err := tm.AddRow(map[string]any{"fld_value": 3})
	require.NoError(t, err)
	b.Flush()

	row, err := tm.GetRow(rowID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, row["fld_doubled"])

	require.NoError(t, tm.SetCell(rowID, "fld_value", 7))
	b.Flush()

	row, err = tm.GetRow(rowID)
	require.NoError(t, err)
	assert.EqualValues(t, 14, row["fld_doubled"])

	// The sibling row kept its own result.
	other, err := tm.GetRow(otherID)
	require.NoError(t, err)
	assert.EqualValues(t, 6, other["fld_doubled"])
}

func TestFormulaColumnAddedAfterRows(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("numbers")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	_, err = tm.AddColumn(&types.Field{
		Name: "Value", Type: types.FieldTypeNumber, TableColumnName: "fld_value",
	})
	require.NoError(t, err)
	rowID, err := tm.AddRow(map[string]any{"fld_value": 4})
	require.NoError(t, err)
	b.Flush()

	// Adding the formula backfills existing rows in one pass.
	prop, err := json.Marshal(types.FormulaProperty{Expr: "fld_value + 1"})
	require.NoError(t, err)
	_, err = tm.AddColumn(&types.Field{
		Name: "Next", Type: types.FieldTypeFormula,
		TableColumnName: "fld_next", Property: prop,
	})
	require.NoError(t, err)
	b.Flush()

	row, err := tm.GetRow(rowID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, row["fld_next"])
}

func TestUpdateColumnPropertyRecomputesFormula(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("numbers")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	_, err = tm.AddColumn(&types.Field{
		Name: "Value", Type: types.FieldTypeNumber, TableColumnName: "fld_value",
	})
	require.NoError(t, err)
	prop, err := json.Marshal(types.FormulaProperty{Expr: "fld_value * 2"})
	require.NoError(t, err)
	_, err = tm.AddColumn(&types.Field{
		Name: "Calc", Type: types.FieldTypeFormula,
		TableColumnName: "fld_calc", Property: prop,
	})
	require.NoError(t, err)

	rowID, err := tm.AddRow(map[string]any{"fld_value": 10})
	require.NoError(t, err)
	b.Flush()

	prop, err = json.Marshal(types.FormulaProperty{Expr: "fld_value * 3"})
	require.NoError(t, err)
	require.NoError(t, tm.UpdateColumnProperty("fld_calc", prop))
	b.Flush()

	row, err := tm.GetRow(rowID)
	require.NoError(t, err)
	assert.EqualValues(t, 30, row["fld_calc"])
}

func TestDeleteRow(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	rowID, err := tm.AddRow(map[string]any{types.ColumnTitle: "done soon"})
	require.NoError(t, err)
	b.Flush()

	require.NoError(t, tm.DeleteRow(rowID))
	b.Flush()

	_, err = tm.GetRow(rowID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, tm.DeleteRow(rowID), types.ErrNotFound)
}

func TestConvertFieldTypeToText(t *testing.T) {
	b := setupBackend(t)

	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	_, err = tm.AddColumn(&types.Field{
		Name: "Count", Type: types.FieldTypeNumber, TableColumnName: "fld_count",
	})
	require.NoError(t, err)

	require.NoError(t, tm.ConvertFieldType("fld_count", types.FieldTypeText))
	field, err := tm.Field("fld_count")
	require.NoError(t, err)
	assert.Equal(t, types.FieldTypeText, field.Type)

	// Converting to the current type is a no-op.
	require.NoError(t, tm.ConvertFieldType("fld_count", types.FieldTypeText))
}
