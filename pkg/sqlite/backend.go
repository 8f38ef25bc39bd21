// Package sqlite provides the public API for the SQLite Fieldstone backend.
// This package exposes the factory function for creating SQLite backends
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/fieldstone/internal/sqlite"
	"github.com/mesh-intelligence/fieldstone/pkg/types"
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".fieldstone-db",
//	})
//	defer backend.Detach()
func NewBackend() types.Space {
	return sqlite.NewBackend()
}
