package testutil

import (
	"testing"

	"findup/internal/findup"
	"findup/internal/index"
)

// NewTestIndex creates a new in-memory SQLite index with migrations
// applied. The index is automatically closed when the test completes.
func NewTestIndex(t *testing.T) findup.Index {
	t.Helper()

	idx, err := index.OpenSQLite(":memory:", NewStubIDGenerator())
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}

	t.Cleanup(func() {
		idx.Close()
	})

	return idx
}
