package sqlite

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

func TestViewAddValidates(t *testing.T) {
	b := setupBackend(t)
	node, err := b.CreateTable("tasks")
	require.NoError(t, err)

	_, err = b.Views().Add(&types.View{TableID: node.ID, Name: "", Query: "SELECT 1"})
	assert.ErrorIs(t, err, types.ErrInvalidView)
	_, err = b.Views().Add(&types.View{TableID: node.ID, Name: "x", Query: ""})
	assert.ErrorIs(t, err, types.ErrInvalidView)
	_, err = b.Views().Add(&types.View{
		TableID: node.ID, Name: "x", Query: "SELECT 1", Type: "hologram",
	})
	assert.ErrorIs(t, err, types.ErrInvalidView)

	// Type defaults to grid, id is assigned.
	view, err := b.Views().Add(&types.View{
		TableID: node.ID, Name: "mine",
		Query: fmt.Sprintf(`SELECT * FROM "%s"`, types.RawTableName(node.ID)),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ViewTypeGrid, view.Type)
	assert.NotEmpty(t, view.ID)
}

func TestViewCRUD(t *testing.T) {
	b := setupBackend(t)
	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	raw := types.RawTableName(node.ID)

	view, err := b.Views().Add(&types.View{
		TableID: node.ID, Name: "open only",
		Query: fmt.Sprintf(`SELECT * FROM "%s" WHERE title != ''`, raw),
	})
	require.NoError(t, err)

	got, err := b.Views().Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "open only", got.Name)

	newQuery := fmt.Sprintf(`SELECT * FROM "%s"`, raw)
	require.NoError(t, b.Views().UpdateQuery(view.ID, newQuery))
	got, err = b.Views().Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, newQuery, got.Query)

	// The seeded default view plus this one, creation order.
	views, err := b.Views().List(node.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, types.DefaultViewName, views[0].Name)

	require.NoError(t, b.Views().Delete(view.ID))
	_, err = b.Views().Get(view.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, b.Views().Delete(view.ID), types.ErrNotFound)
}

func TestViewDeleteByTableID(t *testing.T) {
	b := setupBackend(t)
	node, err := b.CreateTable("tasks")
	require.NoError(t, err)

	require.NoError(t, b.Views().DeleteByTableID(node.ID))
	views, err := b.Views().List(node.ID)
	require.NoError(t, err)
	assert.Empty(t, views)

	// Zero remaining views is not an error.
	require.NoError(t, b.Views().DeleteByTableID(node.ID))
}

func TestIsRowExistInQuery(t *testing.T) {
	b := setupBackend(t)
	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	raw := types.RawTableName(node.ID)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)

	_, err = tm.AddColumn(&types.Field{
		Name: "Score", Type: types.FieldTypeNumber, TableColumnName: "fld_score",
	})
	require.NoError(t, err)
	highID, err := tm.AddRow(map[string]any{types.ColumnTitle: "high", "fld_score": 90})
	require.NoError(t, err)
	lowID, err := tm.AddRow(map[string]any{types.ColumnTitle: "low", "fld_score": 10})
	require.NoError(t, err)
	b.Flush()

	query := fmt.Sprintf(`SELECT * FROM "%s" WHERE fld_score > 50`, raw)

	ok, err := b.Views().IsRowExistInQuery(node.ID, highID, query)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Views().IsRowExistInQuery(node.ID, lowID, query)
	require.NoError(t, err)
	assert.False(t, ok)

	// A missing row never matches.
	ok, err = b.Views().IsRowExistInQuery(node.ID, "missing", query)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsRowExistInQueryRejectsForeignQuery(t *testing.T) {
	b := setupBackend(t)
	node, err := b.CreateTable("tasks")
	require.NoError(t, err)

	_, err = b.Views().IsRowExistInQuery(node.ID, "row", `SELECT * FROM somewhere_else`)
	assert.ErrorIs(t, err, types.ErrInvalidView)
}

func TestIsRowExistInQueryDropsTempTable(t *testing.T) {
	b := setupBackend(t)
	node, err := b.CreateTable("tasks")
	require.NoError(t, err)
	raw := types.RawTableName(node.ID)
	tm, err := b.Manager(node.ID)
	require.NoError(t, err)
	rowID, err := tm.AddRow(map[string]any{types.ColumnTitle: "x"})
	require.NoError(t, err)
	b.Flush()

	_, err = b.Views().IsRowExistInQuery(node.ID, rowID,
		fmt.Sprintf(`SELECT * FROM "%s"`, raw))
	require.NoError(t, err)

	// The single-connection pool sees the session's temp tables.
	rows, err := b.adapter.Query(`SELECT name FROM sqlite_temp_master WHERE type = 'table'`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
