package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"findup/internal/findup"
	"findup/internal/index/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndex is the production findup.Index backed by SQLite. Every
// upsert runs in its own transaction, so a crash mid-scan leaves only
// fully committed records behind.
type SQLiteIndex struct {
	db    *sql.DB
	idgen findup.IDGenerator
	path  string
}

// OpenSQLite opens (or creates) the index at path and brings the schema
// up to date. path can be ":memory:" for an in-memory index. Failures
// here wrap findup.ErrStoreUnavailable: no scan proceeds without a
// store.
func OpenSQLite(path string, idgen findup.IDGenerator) (*SQLiteIndex, error) {
	if idgen == nil {
		idgen = findup.UUIDGenerator{}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", findup.ErrStoreUnavailable, err)
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: applying schema: %w", findup.ErrStoreUnavailable, err)
	}

	return &SQLiteIndex{db: db, idgen: idgen, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the
// PRAGMAs the index depends on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each pooled connection to :memory: would see its own empty
	// database, so pin the pool to a single connection there.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	return db, nil
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy re-runs op with backoff while SQLite reports lock
// contention. Concurrent hashing workers upserting different identities
// hit this under WAL's single-writer rule.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

const recordColumns = `f.id, f.device, f.file_id, f.path, f.size, f.mtime_ns, f.ctime_ns,
	f.birthtime_ns, f.owner_id, f.owner_name, f.seen_at,
	h.pre_hash, h.strong_hash, h.phash, h.fuzzy_hash`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*findup.Record, error) {
	var rec findup.Record
	var seenAt int64
	err := row.Scan(
		&rec.ID, &rec.Identity.Device, &rec.Identity.FileID,
		&rec.Meta.Path, &rec.Meta.Size, &rec.Meta.MtimeNS, &rec.Meta.CtimeNS,
		&rec.Meta.BirthtimeNS, &rec.Meta.OwnerID, &rec.Meta.OwnerName, &seenAt,
		&rec.Hashes.PreHash, &rec.Hashes.StrongHash, &rec.Hashes.PHash, &rec.Hashes.FuzzyHash,
	)
	if err != nil {
		return nil, err
	}
	rec.Meta.SeenAt = time.Unix(0, seenAt).UTC()
	return &rec, nil
}

// Upsert inserts or updates the record for an identity in a single
// transaction. seen_at never regresses: an observation older than the
// stored one leaves the metadata row alone. Hash fields follow
// HashUpdate semantics.
func (s *SQLiteIndex) Upsert(ctx context.Context, id findup.Identity, meta findup.Meta, hashes findup.HashUpdate) (*findup.Record, error) {
	var rec *findup.Record
	err := retryOnBusy(ctx, func() error {
		r, err := s.upsertOnce(ctx, id, meta, hashes)
		if err == nil {
			rec = r
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upserting %s: %w", meta.Path, err)
	}
	return rec, nil
}

func (s *SQLiteIndex) upsertOnce(ctx context.Context, id findup.Identity, meta findup.Meta, hashes findup.HashUpdate) (*findup.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID string
	var storedSeen int64
	err = tx.QueryRowContext(ctx,
		`SELECT id, seen_at FROM files WHERE device = ? AND file_id = ?`,
		id.Device, id.FileID,
	).Scan(&rowID, &storedSeen)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		rowID = s.idgen.New()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO files (id, device, file_id, path, size, mtime_ns, ctime_ns,
				birthtime_ns, owner_id, owner_name, seen_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rowID, id.Device, id.FileID, meta.Path, meta.Size, meta.MtimeNS, meta.CtimeNS,
			meta.BirthtimeNS, meta.OwnerID, meta.OwnerName, meta.SeenAt.UnixNano(),
		)
		if err != nil {
			return nil, fmt.Errorf("inserting file: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("looking up file: %w", err)
	default:
		if meta.SeenAt.UnixNano() >= storedSeen {
			_, err = tx.ExecContext(ctx,
				`UPDATE files SET path = ?, size = ?, mtime_ns = ?, ctime_ns = ?,
					birthtime_ns = ?, owner_id = ?, owner_name = ?, seen_at = ?
				 WHERE id = ?`,
				meta.Path, meta.Size, meta.MtimeNS, meta.CtimeNS,
				meta.BirthtimeNS, meta.OwnerID, meta.OwnerName, meta.SeenAt.UnixNano(),
				rowID,
			)
			if err != nil {
				return nil, fmt.Errorf("updating file: %w", err)
			}
		}
	}

	if err := applyHashUpdate(ctx, tx, rowID, hashes); err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+recordColumns+`
		 FROM files f LEFT JOIN hashes h ON h.file_id = f.id
		 WHERE f.device = ? AND f.file_id = ?`,
		id.Device, id.FileID,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("reloading record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return rec, nil
}

// applyHashUpdate merges a HashUpdate into the hashes row for rowID.
func applyHashUpdate(ctx context.Context, tx *sql.Tx, rowID string, upd findup.HashUpdate) error {
	if upd.PreHash == nil && upd.StrongHash == nil && upd.PHash == nil && upd.FuzzyHash == nil {
		return nil
	}

	var stored findup.Hashes
	err := tx.QueryRowContext(ctx,
		`SELECT pre_hash, strong_hash, phash, fuzzy_hash FROM hashes WHERE file_id = ?`, rowID,
	).Scan(&stored.PreHash, &stored.StrongHash, &stored.PHash, &stored.FuzzyHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("loading hashes: %w", err)
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
	merge(&stored.PreHash, upd.PreHash)
	merge(&stored.StrongHash, upd.StrongHash)
	merge(&stored.PHash, upd.PHash)
	merge(&stored.FuzzyHash, upd.FuzzyHash)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO hashes (file_id, pre_hash, strong_hash, phash, fuzzy_hash)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(file_id) DO UPDATE SET
			pre_hash = excluded.pre_hash,
			strong_hash = excluded.strong_hash,
			phash = excluded.phash,
			fuzzy_hash = excluded.fuzzy_hash`,
		rowID, stored.PreHash, stored.StrongHash, stored.PHash, stored.FuzzyHash,
	)
	if err != nil {
		return fmt.Errorf("storing hashes: %w", err)
	}
	return nil
}

// Get returns the record for an identity, nil when absent, or a
// CorruptRecordError when the stored row violates a structural
// invariant.
func (s *SQLiteIndex) Get(ctx context.Context, id findup.Identity) (*findup.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+`
		 FROM files f LEFT JOIN hashes h ON h.file_id = f.id
		 WHERE f.device = ? AND f.file_id = ?`,
		id.Device, id.FileID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading record: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// GroupByPreHash maps pre-hashes to their member records, restricted to
// records observed at or after since, members ordered by path. Corrupt
// rows are excluded from grouping; Get surfaces them during the scan.
func (s *SQLiteIndex) GroupByPreHash(ctx context.Context, since time.Time) (map[string][]*findup.Record, error) {
	return s.groupBy(ctx,
		`SELECT `+recordColumns+`
		 FROM files f JOIN hashes h ON h.file_id = f.id
		 WHERE h.pre_hash IS NOT NULL AND f.seen_at >= ?
		 ORDER BY h.pre_hash, f.path`,
		func(rec *findup.Record) string { return rec.Hashes.PreHash.String },
		since.UnixNano(),
	)
}

// GroupByStrongHash maps confirmed strong hashes to their member
// records, members ordered by path.
func (s *SQLiteIndex) GroupByStrongHash(ctx context.Context) (map[string][]*findup.Record, error) {
	return s.groupBy(ctx,
		`SELECT `+recordColumns+`
		 FROM files f JOIN hashes h ON h.file_id = f.id
		 WHERE h.strong_hash IS NOT NULL
		 ORDER BY h.strong_hash, f.path`,
		func(rec *findup.Record) string { return rec.Hashes.StrongHash.String },
	)
}

func (s *SQLiteIndex) groupBy(ctx context.Context, query string, key func(*findup.Record) string, args ...any) (map[string][]*findup.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("grouping records: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]*findup.Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if rec.Validate() != nil {
			continue
		}
		groups[key(rec)] = append(groups[key(rec)], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return groups, nil
}

// Stats summarizes the index for status reporting.
func (s *SQLiteIndex) Stats(ctx context.Context) (*findup.IndexStats, error) {
	stats := &findup.IndexStats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM files`,
	).Scan(&stats.TotalFiles, &stats.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("summarizing files: %w", err)
	}

	var finished sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT MAX(finished_at) FROM scans`).Scan(&finished)
	if err != nil {
		return nil, fmt.Errorf("finding last scan: %w", err)
	}
	if finished.Valid {
		stats.LastScanAt = sql.NullTime{Time: time.Unix(0, finished.Int64).UTC(), Valid: true}
	}

	return stats, nil
}

// RecordScan logs one scan operation.
func (s *SQLiteIndex) RecordScan(ctx context.Context, op findup.ScanOperation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, root, started_at, finished_at, status, files_seen, files_hashed, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.Root, op.StartedAt.UnixNano(), op.FinishedAt.UnixNano(), op.Status,
		op.FilesSeen, op.FilesHashed, op.Warnings,
	)
	if err != nil {
		return fmt.Errorf("recording scan: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteIndex) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteIndex implements findup.Index.
var _ findup.Index = (*SQLiteIndex)(nil)
