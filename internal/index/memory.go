package index

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"findup/internal/findup"
)

// MemoryIndex is an in-memory findup.Index for tests and throwaway
// scans. It mirrors the SQLite merge semantics exactly; a single lock
// stands in for the transaction discipline, which is plenty at test
// scale.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[findup.Identity]*findup.Record
	scans   []findup.ScanOperation
	idgen   findup.IDGenerator
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(idgen findup.IDGenerator) *MemoryIndex {
	if idgen == nil {
		idgen = findup.UUIDGenerator{}
	}
	return &MemoryIndex{
		records: make(map[findup.Identity]*findup.Record),
		idgen:   idgen,
	}
}

func cloneRecord(rec *findup.Record) *findup.Record {
	c := *rec
	return &c
}

// Upsert inserts or updates the record for an identity. Records are
// handed out by copy, so callers never share mutable state with the
// store.
func (m *MemoryIndex) Upsert(_ context.Context, id findup.Identity, meta findup.Meta, hashes findup.HashUpdate) (*findup.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		rec = &findup.Record{ID: m.idgen.New(), Identity: id, Meta: meta}
		m.records[id] = rec
	} else if !meta.SeenAt.Before(rec.Meta.SeenAt) {
		// seen_at never regresses; older observations are dropped.
		rec.Meta = meta
	}

	merge := func(field *sql.NullString, v *string) {
		if v == nil {
			return
		}
		if *v == "" {
			*field = sql.NullString{}
		} else {
			*field = sql.NullString{String: *v, Valid: true}
		}
	}
	merge(&rec.Hashes.PreHash, hashes.PreHash)
	merge(&rec.Hashes.StrongHash, hashes.StrongHash)
	merge(&rec.Hashes.PHash, hashes.PHash)
	merge(&rec.Hashes.FuzzyHash, hashes.FuzzyHash)

	return cloneRecord(rec), nil
}

// Get returns the record for an identity, or nil when absent.
func (m *MemoryIndex) Get(_ context.Context, id findup.Identity) (*findup.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return cloneRecord(rec), nil
}

func sortGroupMembers(groups map[string][]*findup.Record) {
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return members[i].Meta.Path < members[j].Meta.Path })
	}
}

// GroupByPreHash maps pre-hashes to member records observed at or after
// since, members ordered by path.
func (m *MemoryIndex) GroupByPreHash(_ context.Context, since time.Time) (map[string][]*findup.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groups := make(map[string][]*findup.Record)
	for _, rec := range m.records {
		if !rec.Hashes.PreHash.Valid || rec.Meta.SeenAt.Before(since) || rec.Validate() != nil {
			continue
		}
		groups[rec.Hashes.PreHash.String] = append(groups[rec.Hashes.PreHash.String], cloneRecord(rec))
	}
	sortGroupMembers(groups)
	return groups, nil
}

// GroupByStrongHash maps confirmed strong hashes to member records,
// members ordered by path.
func (m *MemoryIndex) GroupByStrongHash(_ context.Context) (map[string][]*findup.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groups := make(map[string][]*findup.Record)
	for _, rec := range m.records {
		if !rec.Hashes.StrongHash.Valid || rec.Validate() != nil {
			continue
		}
		groups[rec.Hashes.StrongHash.String] = append(groups[rec.Hashes.StrongHash.String], cloneRecord(rec))
	}
	sortGroupMembers(groups)
	return groups, nil
}

// Stats summarizes the index.
func (m *MemoryIndex) Stats(_ context.Context) (*findup.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &findup.IndexStats{TotalFiles: int64(len(m.records))}
	for _, rec := range m.records {
		stats.TotalBytes += rec.Meta.Size
	}
	for _, op := range m.scans {
		if !stats.LastScanAt.Valid || op.FinishedAt.After(stats.LastScanAt.Time) {
			stats.LastScanAt = sql.NullTime{Time: op.FinishedAt, Valid: true}
		}
	}
	return stats, nil
}

// RecordScan logs one scan operation.
func (m *MemoryIndex) RecordScan(_ context.Context, op findup.ScanOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans = append(m.scans, op)
	return nil
}

// ScanLog returns the recorded scan operations, oldest first.
func (m *MemoryIndex) ScanLog() []findup.ScanOperation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]findup.ScanOperation(nil), m.scans...)
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close() error { return nil }

// Compile-time check that MemoryIndex implements findup.Index.
var _ findup.Index = (*MemoryIndex)(nil)
