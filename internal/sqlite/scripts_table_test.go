package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

func TestScriptsCRUD(t *testing.T) {
	b := setupBackend(t)

	_, err := b.Scripts().Add(&types.Script{Name: ""})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	script, err := b.Scripts().Add(&types.Script{
		Name: "weekly rollup", Code: "return 42", Enabled: true,
	})
	require.NoError(t, err)

	got, err := b.Scripts().Get(script.ID)
	require.NoError(t, err)
	assert.Equal(t, "weekly rollup", got.Name)
	assert.True(t, got.Enabled)

	_, err = b.Scripts().Add(&types.Script{Name: "archive", Code: ""})
	require.NoError(t, err)

	list, err := b.Scripts().List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "archive", list[0].Name)

	require.NoError(t, b.Scripts().Delete(script.ID))
	_, err = b.Scripts().Get(script.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, b.Scripts().Delete(script.ID), types.ErrNotFound)
}
