package findup

import (
	"database/sql"
	"time"
)

// Identity is the durable key for a file: the device plus the
// platform-native file ID (inode on Unix, a synthetic ID elsewhere).
// It survives renames; the path does not.
type Identity struct {
	Device string
	FileID string
}

// Meta holds the mutable per-scan observation of a file.
type Meta struct {
	Path        string
	Size        int64
	MtimeNS     int64
	CtimeNS     int64 // platform-dependent semantics; stored opaque
	BirthtimeNS sql.NullInt64
	OwnerID     sql.NullString
	OwnerName   sql.NullString // resolved lazily, may stay unset
	SeenAt      time.Time
}

// Hashes holds the stored hash columns of a record.
type Hashes struct {
	PreHash    sql.NullString
	StrongHash sql.NullString
	PHash      sql.NullString // reserved for the similarity extension
	FuzzyHash  sql.NullString // reserved for the similarity extension
}

// HashUpdate describes which hash fields an upsert should write.
// A nil field is left untouched; a pointer to the empty string clears
// the stored value.
type HashUpdate struct {
	PreHash    *string
	StrongHash *string
	PHash      *string
	FuzzyHash  *string
}

// ResetHashes returns an update that clears every hash column. Used when
// a file's content changed and the stored hashes are stale.
func ResetHashes() HashUpdate {
	empty := ""
	return HashUpdate{PreHash: &empty, StrongHash: &empty, PHash: &empty, FuzzyHash: &empty}
}

// Record is one indexed file: identity, latest observation and hashes.
type Record struct {
	ID       string // row UUID
	Identity Identity
	Meta     Meta
	Hashes   Hashes
}

// Change classifies a fresh observation against the stored record.
type Change int

const (
	// Unchanged: identity, size and mtime match and a pre-hash is stored.
	Unchanged Change = iota
	// MetadataOnly: content unchanged but path, owner or ctime moved.
	MetadataOnly
	// NeedsRehash: no prior record, size/mtime differ, or the prior
	// record never got a pre-hash (a failed hash retries here).
	NeedsRehash
)

func (c Change) String() string {
	switch c {
	case Unchanged:
		return "unchanged"
	case MetadataOnly:
		return "metadata-only"
	case NeedsRehash:
		return "needs-rehash"
	default:
		return "unknown"
	}
}

// DetectChange is the idempotence gate: it decides whether a freshly
// observed file must be re-hashed, using only size and mtime_ns.
// ctime_ns is deliberately ignored — its semantics differ by platform
// and would cause spurious rehashes.
func DetectChange(prev *Record, meta Meta) Change {
	if prev == nil {
		return NeedsRehash
	}
	if prev.Meta.Size != meta.Size || prev.Meta.MtimeNS != meta.MtimeNS {
		return NeedsRehash
	}
	if !prev.Hashes.PreHash.Valid {
		return NeedsRehash
	}
	if prev.Meta.Path != meta.Path ||
		prev.Meta.CtimeNS != meta.CtimeNS ||
		prev.Meta.OwnerID != meta.OwnerID {
		return MetadataOnly
	}
	return Unchanged
}
