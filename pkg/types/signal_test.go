package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name string
		old  map[string]any
		new  map[string]any
		want map[string]ValueChange
	}{
		{
			name: "identical snapshots produce empty diff",
			old:  map[string]any{"title": "a", "n": int64(1)},
			new:  map[string]any{"title": "a", "n": int64(1)},
			want: map[string]ValueChange{},
		},
		{
			name: "changed value is reported with old and new",
			old:  map[string]any{"title": "a"},
			new:  map[string]any{"title": "b"},
			want: map[string]ValueChange{"title": {Old: "a", New: "b"}},
		},
		{
			name: "key absent from old is reported with nil old",
			old:  map[string]any{},
			new:  map[string]any{"title": "a"},
			want: map[string]ValueChange{"title": {Old: nil, New: "a"}},
		},
		{
			name: "insert against nil old reports every key",
			old:  nil,
			new:  map[string]any{"_id": "r1", "title": "a"},
			want: map[string]ValueChange{
				"_id":   {Old: nil, New: "r1"},
				"title": {Old: nil, New: "a"},
			},
		},
		{
			name: "unchanged keys are excluded",
			old:  map[string]any{"title": "a", "n": int64(1)},
			new:  map[string]any{"title": "a", "n": int64(2)},
			want: map[string]ValueChange{"n": {Old: int64(1), New: int64(2)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(tt.old, tt.new))
		})
	}
}
