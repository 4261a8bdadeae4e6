// Package ledger persists campaigns, planned runs, results, and the
// append-only log/status stream through database/sql + pgx, queried with
// hand-written SQL (see DESIGN.md for why no generated ent client is used).
package ledger

import (
	"database/sql"
)

// Store wraps a pooled *sql.DB and exposes one method per Run Ledger
// operation from the component design.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-open, migrated database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection, for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}
