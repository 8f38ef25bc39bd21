package sqlite

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

func TestTreeAddAssignsIncreasingPositions(t *testing.T) {
	b := setupBackend(t)

	first, err := b.Tree().Add(&types.Node{Name: "alpha", Type: types.NodeTypeFolder})
	require.NoError(t, err)
	second, err := b.Tree().Add(&types.Node{Name: "beta", Type: types.NodeTypeFolder})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.Greater(t, second.Position, first.Position)
}

func TestTreeAddRejectsInvalidNodes(t *testing.T) {
	b := setupBackend(t)

	_, err := b.Tree().Add(&types.Node{Name: "", Type: types.NodeTypeDoc})
	assert.ErrorIs(t, err, types.ErrInvalidNode)

	_, err = b.Tree().Add(&types.Node{Name: "x", Type: "widget"})
	assert.ErrorIs(t, err, types.ErrInvalidNode)
}

func TestTreeGetNodeByShortID(t *testing.T) {
	b := setupBackend(t)

	node, err := b.Tree().Add(&types.Node{Name: "notes", Type: types.NodeTypeDoc})
	require.NoError(t, err)

	byExact, err := b.Tree().GetNode(node.ID)
	require.NoError(t, err)
	assert.Equal(t, node.ID, byExact.ID)

	byShort, err := b.Tree().GetNode(types.ShortID(node.ID))
	require.NoError(t, err)
	assert.Equal(t, node.ID, byShort.ID)

	_, err = b.Tree().GetNode("00000000")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestTreeGetNodeAmbiguousSuffix(t *testing.T) {
	b := setupBackend(t)

	suffix := "deadbeef"
	_, err := b.Tree().Add(&types.Node{
		ID:   strings.Repeat("a", 24) + suffix,
		Name: "one", Type: types.NodeTypeDoc,
	})
	require.NoError(t, err)
	_, err = b.Tree().Add(&types.Node{
		ID:   strings.Repeat("b", 24) + suffix,
		Name: "two", Type: types.NodeTypeDoc,
	})
	require.NoError(t, err)

	_, err = b.Tree().GetNode(suffix)
	assert.ErrorIs(t, err, types.ErrAmbiguousID)
}

func TestTreeListOrdersNewestFirst(t *testing.T) {
	b := setupBackend(t)

	for _, name := range []string{"one", "two", "three"} {
		_, err := b.Tree().Add(&types.Node{Name: name, Type: types.NodeTypeFolder})
		require.NoError(t, err)
	}

	nodes, err := b.Tree().List(types.NodeListFilter{})
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "three", nodes[0].Name)
	assert.Equal(t, "one", nodes[2].Name)
}

func TestTreeListNameFilter(t *testing.T) {
	b := setupBackend(t)

	parent, err := b.Tree().Add(&types.Node{Name: "project alpha", Type: types.NodeTypeFolder})
	require.NoError(t, err)
	_, err = b.Tree().Add(&types.Node{
		Name: "nested alpha", Type: types.NodeTypeDoc, ParentID: &parent.ID,
	})
	require.NoError(t, err)

	// A name match without WithSubNodes only looks at top-level nodes.
	top, err := b.Tree().List(types.NodeListFilter{Query: "alpha"})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "project alpha", top[0].Name)

	all, err := b.Tree().List(types.NodeListFilter{Query: "alpha", WithSubNodes: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTreeListExcludesDeleted(t *testing.T) {
	b := setupBackend(t)

	keep, err := b.Tree().Add(&types.Node{Name: "keep", Type: types.NodeTypeDoc})
	require.NoError(t, err)
	gone, err := b.Tree().Add(&types.Node{Name: "gone", Type: types.NodeTypeDoc})
	require.NoError(t, err)

	require.NoError(t, b.Tree().Delete(gone.ID))

	nodes, err := b.Tree().List(types.NodeListFilter{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, keep.ID, nodes[0].ID)

	// The deleted row is retained, not purged.
	got, err := b.Tree().Get(gone.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
}

func TestTreeUpdateNameAndPin(t *testing.T) {
	b := setupBackend(t)

	node, err := b.Tree().Add(&types.Node{Name: "draft", Type: types.NodeTypeDoc})
	require.NoError(t, err)

	require.NoError(t, b.Tree().UpdateName(node.ID, "final"))
	require.NoError(t, b.Tree().Pin(node.ID, true))

	got, err := b.Tree().Get(node.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Name)
	assert.True(t, got.IsPinned)

	assert.ErrorIs(t, b.Tree().UpdateName("missing", "x"), types.ErrNotFound)
	assert.ErrorIs(t, b.Tree().Pin("missing", true), types.ErrNotFound)
	assert.ErrorIs(t, b.Tree().Delete("missing"), types.ErrNotFound)
}

func TestTreeCheckLoop(t *testing.T) {
	b := setupBackend(t)

	// grandparent -> parent -> child
	grandparent, err := b.Tree().Add(&types.Node{Name: "grandparent", Type: types.NodeTypeFolder})
	require.NoError(t, err)
	parent, err := b.Tree().Add(&types.Node{
		Name: "parent", Type: types.NodeTypeFolder, ParentID: &grandparent.ID,
	})
	require.NoError(t, err)
	child, err := b.Tree().Add(&types.Node{
		Name: "child", Type: types.NodeTypeFolder, ParentID: &parent.ID,
	})
	require.NoError(t, err)
	other, err := b.Tree().Add(&types.Node{Name: "other", Type: types.NodeTypeFolder})
	require.NoError(t, err)

	err = b.Tree().CheckLoop(grandparent.ID, grandparent.ID)
	assert.ErrorIs(t, err, types.ErrCycleDetected)

	err = b.Tree().CheckLoop(grandparent.ID, child.ID)
	assert.ErrorIs(t, err, types.ErrCycleDetected)

	assert.NoError(t, b.Tree().CheckLoop(grandparent.ID, other.ID))
	assert.NoError(t, b.Tree().CheckLoop(child.ID, grandparent.ID))
}

func TestTreeMoveIntoTable(t *testing.T) {
	b := setupBackend(t)

	table, err := b.CreateTable("inbox")
	require.NoError(t, err)
	doc, err := b.Tree().Add(&types.Node{Name: "meeting notes", Type: types.NodeTypeDoc})
	require.NoError(t, err)

	require.NoError(t, b.Tree().MoveIntoTable(doc.ID, table.ID, nil))
	b.Flush()

	moved, err := b.Tree().Get(doc.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, table.ID, *moved.ParentID)

	// The node now has a row in the table, keyed by the node id, titled
	// with the node name.
	tm, err := b.Manager(table.ID)
	require.NoError(t, err)
	row, err := tm.GetRow(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "meeting notes", row[types.ColumnTitle])
}

func TestTreeMoveBetweenTables(t *testing.T) {
	b := setupBackend(t)

	src, err := b.CreateTable("source")
	require.NoError(t, err)
	dst, err := b.CreateTable("destination")
	require.NoError(t, err)
	doc, err := b.Tree().Add(&types.Node{Name: "wandering", Type: types.NodeTypeDoc})
	require.NoError(t, err)

	require.NoError(t, b.Tree().MoveIntoTable(doc.ID, src.ID, nil))
	require.NoError(t, b.Tree().MoveIntoTable(doc.ID, dst.ID, &src.ID))
	b.Flush()

	// The previous table no longer holds the row.
	rows, err := b.adapter.Query(
		fmt.Sprintf(`SELECT _id FROM "%s" WHERE _id = ?`, types.RawTableName(src.ID)), doc.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	tm, err := b.Manager(dst.ID)
	require.NoError(t, err)
	_, err = tm.GetRow(doc.ID)
	assert.NoError(t, err)
}
