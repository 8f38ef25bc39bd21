package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/fieldstone/internal/events"
	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// adapter wraps the embedded SQL engine: parametrized execution, generic
// row-map queries for dynamically shaped data tables, and transaction
// scoping with deferred signal emission.
//
// Triggers fire per statement, so signals raised inside an explicit
// transaction scope describe rows that a later rollback could undo. The
// adapter therefore buffers signals while a transaction is open and hands
// them to the bus only on commit; a rollback discards them.
type adapter struct {
	db  *sql.DB
	bus *events.Bus

	sigMu     sync.Mutex
	buffering bool
	pending   []types.ChangeSignal
}

func newAdapter(db *sql.DB, bus *events.Bus) *adapter {
	return &adapter{db: db, bus: bus}
}

// emit receives signals from the data-event UDFs. Bound per space for the
// lifetime of an attach.
func (a *adapter) emit(sig types.ChangeSignal) {
	a.sigMu.Lock()
	if a.buffering {
		a.pending = append(a.pending, sig)
		a.sigMu.Unlock()
		return
	}
	a.sigMu.Unlock()
	a.bus.Publish(sig)
}

// Exec runs one parametrized statement.
func (a *adapter) Exec(query string, args ...any) (sql.Result, error) {
	res, err := a.db.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing %q: %w", summarize(query), err)
	}
	return res, nil
}

// Query runs a parametrized select and returns generic row maps, one map
// per row keyed by column name. Data tables have caller-defined columns, so
// a fixed scan target is not available.
func (a *adapter) Query(query string, args ...any) ([]map[string]any, error) {
	rows, err := a.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", summarize(query), err)
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

// InTransaction runs fn inside one transaction: every statement applies or
// none do. Signals raised by triggers within the scope are buffered and
// published only after a clean commit.
func (a *adapter) InTransaction(fn func(tx *sql.Tx) error) error {
	a.sigMu.Lock()
	a.buffering = true
	a.sigMu.Unlock()

	flush := func(publish bool) {
		a.sigMu.Lock()
		pending := a.pending
		a.pending = nil
		a.buffering = false
		a.sigMu.Unlock()
		if publish {
			for _, sig := range pending {
				a.bus.Publish(sig)
			}
		}
	}

	tx, err := a.db.Begin()
	if err != nil {
		flush(false)
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		flush(false)
		return err
	}
	if err := tx.Commit(); err != nil {
		flush(false)
		return fmt.Errorf("committing transaction: %w", err)
	}
	flush(true)
	return nil
}

// rowsToMaps scans every remaining row into a map keyed by column name.
// TEXT values arrive as strings, INTEGER as int64, REAL as float64.
func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		m := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				m[col] = string(b)
			} else {
				m[col] = values[i]
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// summarize trims a SQL statement for error messages.
func summarize(query string) string {
	const max = 60
	if len(query) <= max {
		return query
	}
	return query[:max] + "..."
}
