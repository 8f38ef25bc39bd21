package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

func TestCreateTriggerDDL(t *testing.T) {
	ddl := createTriggerDDL("space1", "tb_abc", []string{"_id", "title"})
	require.Len(t, ddl, 3)

	assert.Contains(t, ddl[0], `CREATE TRIGGER "tb_abc_insert_trigger" AFTER INSERT ON "tb_abc"`)
	assert.Contains(t, ddl[0], udfDataEventInsert)
	assert.Contains(t, ddl[0], `json_object('_id', new."_id", 'title', new."title")`)

	// The update trigger carries both snapshots, new first.
	assert.Contains(t, ddl[1], `new."title"`)
	assert.Contains(t, ddl[1], `old."title"`)

	assert.Contains(t, ddl[2], udfDataEventDelete)
	assert.Contains(t, ddl[2], `old."_id"`)

	// Routing is baked into the body.
	for _, stmt := range ddl {
		assert.Contains(t, stmt, "'space1'")
	}
}

func TestDropTriggerDDL(t *testing.T) {
	ddl := dropTriggerDDL("tb_abc")
	require.Len(t, ddl, 3)
	for _, stmt := range ddl {
		assert.Contains(t, stmt, "DROP TRIGGER IF EXISTS")
	}
}

func TestStructuralChangeRecreatesTriggers(t *testing.T) {
	b := setupBackend(t)
	node, err := b.CreateTable("tasks")
	require.NoError(t, err)

	tm, err := b.Manager(node.ID)
	require.NoError(t, err)
	_, err = tm.AddColumn(&types.Field{
		Name: "Extra", Type: types.FieldTypeText, TableColumnName: "fld_extra",
	})
	require.NoError(t, err)

	// The recreated insert trigger covers the new column, so a seeded value
	// arrives in the change snapshot and reaches dependent formulas.
	rows, err := b.adapter.Query(
		`SELECT sql FROM sqlite_master WHERE type = 'trigger' AND name = ?`,
		triggerName(types.RawTableName(node.ID), "insert"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	sql, _ := rows[0]["sql"].(string)
	assert.Contains(t, sql, "fld_extra")
}
