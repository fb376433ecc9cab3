package findup

import (
	"context"
	"database/sql"
	"time"
)

// Index is the durable, idempotent store of file identity records.
// Every component that reads or writes the index receives an explicit
// handle; there is no process-wide instance.
type Index interface {
	// Upsert inserts or updates the record keyed by identity. Meta fields
	// are replaced wholesale except SeenAt, which never regresses; hash
	// fields follow HashUpdate semantics (nil = keep, empty = clear).
	// The write is atomic per record. Upserts to the same identity are
	// serialized; upserts to different identities do not block each other.
	Upsert(ctx context.Context, id Identity, meta Meta, hashes HashUpdate) (*Record, error)

	// Get returns the record for an identity, or nil when absent.
	Get(ctx context.Context, id Identity) (*Record, error)

	// GroupByPreHash maps each pre-hash to its member records, restricted
	// to records observed at or after since, members ordered by path.
	// The hashing pipeline uses it to size candidate buckets before
	// committing to a strong-hash computation.
	GroupByPreHash(ctx context.Context, since time.Time) (map[string][]*Record, error)

	// GroupByStrongHash maps each confirmed strong hash to its member
	// records, members ordered by path.
	GroupByStrongHash(ctx context.Context) (map[string][]*Record, error)

	// Stats summarizes the index for status reporting.
	Stats(ctx context.Context) (*IndexStats, error)

	// RecordScan logs a completed (or cancelled) scan operation.
	RecordScan(ctx context.Context, op ScanOperation) error

	// Close releases the store handle.
	Close() error
}

// IndexStats is the status surface consumed by the CLI.
type IndexStats struct {
	TotalFiles int64
	TotalBytes int64
	LastScanAt sql.NullTime
}

// ScanOperation is one row of the scan log.
type ScanOperation struct {
	ID          string
	Root        string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string // "done" or "cancelled"
	FilesSeen   int64
	FilesHashed int64
	Warnings    int64
}
