package orderlog

import "context"

// Repository is the port for persisting audit entries. The coordinator
// depends on this abstraction, not on SQLite directly, so the implementation
// can be swapped for Postgres, in-memory (tests), etc.
type Repository interface {
	// Save appends one entry. The table is an append-only audit log, never
	// an upsert.
	Save(ctx context.Context, entry *Entry) error
}
