package sqlite

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	sqlite3 "modernc.org/sqlite"

	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// UDF names exposed to the SQL engine. The data-event emitters are called
// from row-level triggers with a space id, a table name and JSON-encoded row
// snapshots; the helpers are plain scalar functions usable in formulas.
const (
	udfDataEventInsert = "fs_data_event_insert"
	udfDataEventUpdate = "fs_data_event_update"
	udfDataEventDelete = "fs_data_event_delete"
	udfTwice           = "fs_twice"
	udfToday           = "fs_today"
)

// Scalar function registration with the modernc driver is process-global and
// applies to every subsequently opened connection, so the emitters route by
// space id: each trigger bakes its space's id into the call, and attached
// backends bind an emitter here for the lifetime of the attach.
var (
	emittersMu sync.RWMutex
	emitters   = map[string]func(types.ChangeSignal){}

	registerOnce sync.Once
)

// bindEmitter routes data-event UDF calls for one space to fn.
func bindEmitter(spaceID string, fn func(types.ChangeSignal)) {
	emittersMu.Lock()
	defer emittersMu.Unlock()
	emitters[spaceID] = fn
}

// unbindEmitter stops routing for a space. Events raised after unbind are
// dropped.
func unbindEmitter(spaceID string) {
	emittersMu.Lock()
	defer emittersMu.Unlock()
	delete(emitters, spaceID)
}

func emitTo(spaceID string, sig types.ChangeSignal) {
	emittersMu.RLock()
	fn := emitters[spaceID]
	emittersMu.RUnlock()
	if fn != nil {
		fn(sig)
	}
}

// registerUDFs registers all user-defined functions with the driver.
// Safe to call from every Attach; registration happens once per process.
func registerUDFs() {
	registerOnce.Do(func() {
		sqlite3.MustRegisterDeterministicScalarFunction(udfTwice, 1,
			func(ctx *sqlite3.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case int64:
					return v + v, nil
				case float64:
					return v + v, nil
				case string:
					return v + v, nil
				case nil:
					return nil, nil
				default:
					return nil, fmt.Errorf("%s: unsupported argument type %T", udfTwice, args[0])
				}
			})

		sqlite3.MustRegisterScalarFunction(udfToday, 0,
			func(ctx *sqlite3.FunctionContext, args []driver.Value) (driver.Value, error) {
				return time.Now().UTC().Format("2006-01-02"), nil
			})

		sqlite3.MustRegisterScalarFunction(udfDataEventInsert, 3,
			func(ctx *sqlite3.FunctionContext, args []driver.Value) (driver.Value, error) {
				spaceID, table := argString(args[0]), argString(args[1])
				emitTo(spaceID, types.ChangeSignal{
					Type:  types.SignalInsert,
					Table: table,
					New:   parseSnapshot(table, args[2]),
				})
				return nil, nil
			})

		sqlite3.MustRegisterScalarFunction(udfDataEventUpdate, 4,
			func(ctx *sqlite3.FunctionContext, args []driver.Value) (driver.Value, error) {
				spaceID, table := argString(args[0]), argString(args[1])
				emitTo(spaceID, types.ChangeSignal{
					Type:  types.SignalUpdate,
					Table: table,
					New:   parseSnapshot(table, args[2]),
					Old:   parseSnapshot(table, args[3]),
				})
				return nil, nil
			})

		sqlite3.MustRegisterScalarFunction(udfDataEventDelete, 3,
			func(ctx *sqlite3.FunctionContext, args []driver.Value) (driver.Value, error) {
				spaceID, table := argString(args[0]), argString(args[1])
				emitTo(spaceID, types.ChangeSignal{
					Type:  types.SignalDelete,
					Table: table,
					Old:   parseSnapshot(table, args[2]),
				})
				return nil, nil
			})
	})
}

func argString(v driver.Value) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

// parseSnapshot decodes a trigger-supplied json_object row snapshot.
// A malformed snapshot is logged and dropped rather than failing the
// originating statement: the row mutation is already durable and must not
// be rolled back by event plumbing.
func parseSnapshot(table string, v driver.Value) map[string]any {
	raw := argString(v)
	if raw == "" {
		return nil
	}
	var snap map[string]any
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Printf("sqlite: dropping malformed row snapshot from %s: %v", table, err)
		return nil
	}
	return snap
}
