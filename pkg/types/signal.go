package types

// Change signal types.
const (
	SignalInsert = "insert"
	SignalUpdate = "update"
	SignalDelete = "delete"
)

// ChangeSignal is a structured notification of a row mutation, emitted by a
// storage-level trigger at the moment the row change is durable. Signals are
// ephemeral: they live on the change event bus and are never persisted.
type ChangeSignal struct {
	Type  string         // One of the Signal constants.
	Table string         // Physical table name (tb_ or lk_ prefixed).
	New   map[string]any // Row snapshot after the mutation; nil on delete.
	Old   map[string]any // Row snapshot before the mutation; nil on insert.
}

// ValueChange carries the before/after pair for one changed column.
type ValueChange struct {
	Old any
	New any
}

// Diff computes the field-level difference between two row snapshots: every
// key in new whose value differs from old, plus every key in new absent from
// old. Keys present identically in both snapshots are excluded.
func Diff(old, new map[string]any) map[string]ValueChange {
	diff := make(map[string]ValueChange)
	for k, v := range new {
		prev, existed := old[k]
		if !existed {
			diff[k] = ValueChange{Old: nil, New: v}
			continue
		}
		if prev != v {
			diff[k] = ValueChange{Old: prev, New: v}
		}
	}
	return diff
}
