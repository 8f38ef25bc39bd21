package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEntityID(t *testing.T) {
	id := NewEntityID()
	assert.Len(t, id, 32, "entity ids are dashless UUIDs")
	assert.NotContains(t, id, "-")

	other := NewEntityID()
	assert.NotEqual(t, id, other)
}

func TestShortID(t *testing.T) {
	id := "0189aefb4c7d7000b000000000000001"
	assert.Equal(t, "00000001", ShortID(id))
	assert.Equal(t, "short", ShortID("short"))
}

func TestRawTableName(t *testing.T) {
	assert.Equal(t, "tb_abc", RawTableName("abc"))

	got, ok := TableIDFromRawName("tb_abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	_, ok = TableIDFromRawName("nodes")
	assert.False(t, ok)
}

func TestLinkTableName(t *testing.T) {
	lk := LinkTableName("table1", "fld_owner")
	assert.Equal(t, "lk_table1__fld_owner", lk)
	assert.True(t, IsLinkTable(lk))
	assert.False(t, IsLinkTable("tb_table1"))

	tableID, column, ok := ParseLinkTableName(lk)
	assert.True(t, ok)
	assert.Equal(t, "table1", tableID)
	assert.Equal(t, "fld_owner", column)
}

func TestParseLinkTableName_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"data table", "tb_table1"},
		{"missing separator", "lk_table1"},
		{"empty table id", "lk___fld_owner"},
		{"empty column", "lk_table1__"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := ParseLinkTableName(tt.raw)
			assert.False(t, ok)
		})
	}
}
