package index_test

import (
	"context"
	"testing"
	"time"

	"findup/internal/findup"
	"findup/internal/index"
	"findup/internal/testutil"
)

func TestMemoryIndex_MirrorsSQLiteSemantics(t *testing.T) {
	idx := index.NewMemoryIndex(testutil.NewStubIDGenerator())
	ctx := context.Background()
	id := findup.Identity{Device: "1", FileID: "1"}
	seen := testutil.FixedClock().Now()

	t.Run("upsert and get", func(t *testing.T) {
		rec, err := idx.Upsert(ctx, id, testMeta("/m.txt", 7, seen), findup.HashUpdate{})
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if rec.ID != "id-1" {
			t.Errorf("ID = %q, want id-1", rec.ID)
		}

		got, err := idx.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got == nil || got.Meta.Path != "/m.txt" {
			t.Errorf("Get() = %+v", got)
		}
	})

	t.Run("returned records are copies", func(t *testing.T) {
		rec, _ := idx.Get(ctx, id)
		rec.Meta.Path = "/mutated"

		again, _ := idx.Get(ctx, id)
		if again.Meta.Path != "/m.txt" {
			t.Error("mutating a returned record leaked into the store")
		}
	})

	t.Run("seen_at never regresses", func(t *testing.T) {
		stale := testMeta("/stale", 7, seen.Add(-time.Hour))
		rec, err := idx.Upsert(ctx, id, stale, findup.HashUpdate{})
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if rec.Meta.Path != "/m.txt" {
			t.Errorf("Path = %q, stale observation applied", rec.Meta.Path)
		}
	})

	t.Run("hash merge and clear", func(t *testing.T) {
		pre, strong := "pre-1", "strong-1"
		if _, err := idx.Upsert(ctx, id, testMeta("/m.txt", 7, seen), findup.HashUpdate{PreHash: &pre}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		rec, err := idx.Upsert(ctx, id, testMeta("/m.txt", 7, seen), findup.HashUpdate{StrongHash: &strong})
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if rec.Hashes.PreHash.String != pre || rec.Hashes.StrongHash.String != strong {
			t.Errorf("Hashes = %+v", rec.Hashes)
		}

		rec, err = idx.Upsert(ctx, id, testMeta("/m.txt", 7, seen), findup.ResetHashes())
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if rec.Hashes.PreHash.Valid || rec.Hashes.StrongHash.Valid {
			t.Errorf("hashes survived reset: %+v", rec.Hashes)
		}
	})
}

func TestMemoryIndex_Grouping(t *testing.T) {
	idx := index.NewMemoryIndex(testutil.NewStubIDGenerator())
	ctx := context.Background()
	seen := testutil.FixedClock().Now()

	pre := "shared"
	put := func(fileID, path string, at time.Time) {
		t.Helper()
		if _, err := idx.Upsert(ctx, findup.Identity{Device: "1", FileID: fileID},
			testMeta(path, 10, at), findup.HashUpdate{PreHash: &pre}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", path, err)
		}
	}
	put("a", "/z", seen)
	put("b", "/y", seen)
	put("c", "/ancient", seen.Add(-time.Hour))

	groups, err := idx.GroupByPreHash(ctx, seen)
	if err != nil {
		t.Fatalf("GroupByPreHash() error = %v", err)
	}
	members := groups[pre]
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if members[0].Meta.Path != "/y" || members[1].Meta.Path != "/z" {
		t.Errorf("members not ordered by path: %q, %q", members[0].Meta.Path, members[1].Meta.Path)
	}
}

func TestMemoryIndex_ScanLog(t *testing.T) {
	idx := index.NewMemoryIndex(nil)
	ctx := context.Background()
	now := testutil.FixedClock().Now()

	for i, status := range []string{"done", "cancelled"} {
		op := findup.ScanOperation{
			ID: testutil.NewStubIDGenerator().New(), Root: "/", Status: status,
			StartedAt: now, FinishedAt: now.Add(time.Duration(i+1) * time.Minute),
		}
		if err := idx.RecordScan(ctx, op); err != nil {
			t.Fatalf("RecordScan() error = %v", err)
		}
	}

	log := idx.ScanLog()
	if len(log) != 2 {
		t.Fatalf("got %d entries, want 2", len(log))
	}
	if log[0].Status != "done" || log[1].Status != "cancelled" {
		t.Errorf("log order wrong: %v", log)
	}

	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if !stats.LastScanAt.Valid || !stats.LastScanAt.Time.Equal(now.Add(2*time.Minute)) {
		t.Errorf("LastScanAt = %v", stats.LastScanAt)
	}
}
