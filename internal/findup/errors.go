package findup

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is returned when the index store cannot be opened
// or written at all. It is fatal to a scan: no scan proceeds without a
// store.
var ErrStoreUnavailable = errors.New("index store unavailable")

// ScanWarning records a per-file failure that was skipped rather than
// aborting the scan: unreadable entries, permission errors, hash I/O
// failures. Warnings are accumulated and reported in the scan summary.
type ScanWarning struct {
	Path  string
	Stage string // "walk", "stat", "pre-hash", "strong-hash", "fingerprint"
	Err   error
}

func (w ScanWarning) Error() string {
	return fmt.Sprintf("%s: %s: %v", w.Stage, w.Path, w.Err)
}

func (w ScanWarning) Unwrap() error { return w.Err }

// CorruptRecordError reports a persisted record that failed a structural
// invariant check on load. It is fatal to the affected record only; the
// recommended recovery is a targeted re-scan of that identity.
type CorruptRecordError struct {
	Identity Identity
	Path     string
	Reason   string
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt index record for %s (device=%s id=%s): %s",
		e.Path, e.Identity.Device, e.Identity.FileID, e.Reason)
}

// Validate checks the structural invariants every stored record must
// hold. Index implementations call it when loading rows.
func (r *Record) Validate() error {
	fail := func(reason string) error {
		return &CorruptRecordError{Identity: r.Identity, Path: r.Meta.Path, Reason: reason}
	}
	if r.Identity.Device == "" || r.Identity.FileID == "" {
		return fail("missing identity")
	}
	if r.Meta.Path == "" {
		return fail("empty path")
	}
	if r.Meta.Size < 0 {
		return fail("negative size")
	}
	if r.Hashes.StrongHash.Valid && !r.Hashes.PreHash.Valid {
		return fail("strong hash present without pre-hash")
	}
	return nil
}
