// Package testutil provides shared test helpers for setting up memo stores.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/memos/internal/models"
	"github.com/starford/memos/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T, opts ...store.Option) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "memos-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SeedMemos stores each content as a new private memo, bypassing the
// document model, and returns them in order.
func SeedMemos(t *testing.T, db *store.DB, contents ...string) []*models.Memo {
	t.Helper()
	out := make([]*models.Memo, len(contents))
	for i, c := range contents {
		m, err := db.CreateMemo(context.Background(), c, models.Private)
		if err != nil {
			t.Fatalf("seed memo %d: %v", i, err)
		}
		out[i] = m
	}
	return out
}
