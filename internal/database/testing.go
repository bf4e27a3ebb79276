package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NewTestDB opens a migrated in-memory database for package tests. Each
// call gets its own named in-memory store so parallel tests cannot see each
// other's rows.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	path := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db, zerolog.Nop()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
