package relaymux

import (
	"github.com/relaymux/relaymux/internal/state"
)

// StateStore persists per-backend usage and cooldown records. Implementations
// must return an empty document, not an error, for missing or corrupt state.
type StateStore = state.Store

// NewFileStateStore persists state as a single JSON document at path.
func NewFileStateStore(path string) StateStore {
	return state.NewFileStore(path)
}

// NewMemoryStateStore keeps state in process memory only. Useful for tests
// and for embedders that do not want cooldowns to survive restarts.
func NewMemoryStateStore() StateStore {
	return state.NewMemStore()
}

// NewSQLiteStateStore persists state in a local SQLite database.
func NewSQLiteStateStore(dsn string) (StateStore, error) {
	return state.NewSQLiteStore(dsn)
}

// NewPostgresStateStore persists state in a shared PostgreSQL database so
// several gateway instances can coordinate cooldowns.
func NewPostgresStateStore(dsn string) (StateStore, error) {
	return state.NewPostgresStore(dsn)
}

// NewRedisStateStore persists state under a single Redis key.
func NewRedisStateStore(url string) (StateStore, error) {
	return state.NewRedisStore(url)
}
