package findup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// summaryAdd bumps a summary counter shared with pool workers.
func summaryAdd(p *int64) { atomic.AddInt64(p, 1) }

// ScanOptions are the per-scan knobs recognized by Scan. The phash and
// fuzzy switches are forwarded to registered fingerprinters; the core
// ships none, so they are no-ops unless the caller wired some in.
type ScanOptions struct {
	EnablePHash      bool
	EnableFuzzy      bool
	ProgressInterval int64 // log a progress line every N files; 0 disables
	Ignore           IgnoreMatcher
}

// ScanSummary reports what a scan did. A file is never silently
// dropped: anything skipped or failed appears in Warnings.
type ScanSummary struct {
	FilesSeen      int64
	FilesPreHashed int64
	FilesHashed    int64 // strong digests computed this scan
	Unchanged      int64
	Warnings       []ScanWarning
}

// Tuning bounds the concurrency controller wrapping the hashing stages.
type Tuning struct {
	Workers     int           // hashing goroutines
	QueueSize   int           // bounded task queue; producers block when full
	ReadTimeout time.Duration // per-file read budget; 0 = unlimited
}

// ScanService runs the incremental identity-index pipeline: walk,
// change detection, pre-hash, then bucketed strong hashing. All
// persistent mutation goes through the Index handle; records are handed
// between stages by value.
type ScanService struct {
	index          Index
	fsmgr          FilesystemManager
	pre            Hasher
	strong         Hasher
	fingerprinters []Fingerprinter
	logger         Logger
	clock          Clock
	idgen          IDGenerator
	tuning         Tuning
}

// NewScanService creates a ScanService with the provided dependencies.
func NewScanService(index Index, fsmgr FilesystemManager, pre, strong Hasher, logger Logger, clock Clock, idgen IDGenerator, tuning Tuning) *ScanService {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &ScanService{
		index:  index,
		fsmgr:  fsmgr,
		pre:    pre,
		strong: strong,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		tuning: tuning,
	}
}

// RegisterFingerprinter wires in a similarity fingerprinter. Its output
// is stored in the reserved phash/fuzzy_hash columns when the matching
// scan option is enabled.
func (s *ScanService) RegisterFingerprinter(f Fingerprinter) {
	s.fingerprinters = append(s.fingerprinters, f)
}

// Scan walks the tree rooted at root and brings the index up to date.
// Per-file failures become warnings; only store-level failures abort.
// Cancelling ctx stops the scan between batches, leaving every
// committed record valid; a restarted scan resumes via the change
// detector.
func (s *ScanService) Scan(ctx context.Context, root *Path, opts ScanOptions) (*ScanSummary, error) {
	started := s.clock.Now()
	summary := &ScanSummary{}

	var mu sync.Mutex
	warn := func(w ScanWarning) {
		mu.Lock()
		summary.Warnings = append(summary.Warnings, w)
		mu.Unlock()
		s.logger.Warn("scan warning", "stage", w.Stage, "path", w.Path, "error", w.Err)
	}

	s.logger.Info("scan started", "root", root.String())

	walkErr := s.runWalkPhase(ctx, root, opts, started, summary, warn)

	var strongErr error
	if walkErr == nil {
		strongErr = s.runStrongPhase(ctx, started, opts, summary, warn)
	}

	status := "done"
	err := walkErr
	if err == nil {
		err = strongErr
	}
	if err != nil {
		status = "cancelled"
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			status = "failed"
		}
	}

	op := ScanOperation{
		ID:          s.idgen.New(),
		Root:        root.String(),
		StartedAt:   started,
		FinishedAt:  s.clock.Now(),
		Status:      status,
		FilesSeen:   summary.FilesSeen,
		FilesHashed: summary.FilesHashed,
		Warnings:    int64(len(summary.Warnings)),
	}
	if recErr := s.index.RecordScan(context.WithoutCancel(ctx), op); recErr != nil {
		s.logger.Error("recording scan operation", "error", recErr)
	}

	s.logger.Info("scan finished",
		"status", status,
		"seen", summary.FilesSeen,
		"pre_hashed", summary.FilesPreHashed,
		"strong_hashed", summary.FilesHashed,
		"warnings", len(summary.Warnings))

	return summary, err
}

// runWalkPhase streams files from the walker, classifies each against
// the stored record, and feeds files needing a rehash to the pre-hash
// worker pool. The walk itself stays single-threaded; only hashing
// fans out.
func (s *ScanService) runWalkPhase(ctx context.Context, root *Path, opts ScanOptions, started time.Time, summary *ScanSummary, warn func(ScanWarning)) error {
	pool := NewPool(s.tuning.Workers, s.tuning.QueueSize)
	defer pool.Wait()

	var mu sync.Mutex
	var storeErr error
	setStoreErr := func(err error) {
		mu.Lock()
		if storeErr == nil {
			storeErr = err
		}
		mu.Unlock()
	}

	walkErr := s.fsmgr.Walk(root, func(path *Path, info fs.FileInfo, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		mu.Lock()
		if storeErr != nil {
			defer mu.Unlock()
			return storeErr
		}
		mu.Unlock()

		if err != nil {
			name := ""
			if path != nil {
				name = path.String()
			}
			warn(ScanWarning{Path: name, Stage: "walk", Err: err})
			return nil
		}

		if opts.Ignore != nil {
			if rel, relErr := filepath.Rel(root.String(), path.String()); relErr == nil && opts.Ignore.Match(rel) {
				return nil
			}
		}

		identity, meta, err := s.fsmgr.Extract(path, info)
		if err != nil {
			warn(ScanWarning{Path: path.String(), Stage: "stat", Err: err})
			return nil
		}
		meta.SeenAt = s.clock.Now()

		prev, err := s.index.Get(ctx, identity)
		if err != nil {
			var corrupt *CorruptRecordError
			if errors.As(err, &corrupt) {
				// Fatal to the affected record only: warn and rebuild it.
				warn(ScanWarning{Path: path.String(), Stage: "index", Err: err})
				prev = nil
			} else {
				return fmt.Errorf("reading index: %w", err)
			}
		}

		summary.FilesSeen++
		if opts.ProgressInterval > 0 && summary.FilesSeen%opts.ProgressInterval == 0 {
			s.logger.Info("scan progress", "seen", summary.FilesSeen)
		}

		switch DetectChange(prev, meta) {
		case Unchanged:
			summary.Unchanged++
			if _, err := s.index.Upsert(ctx, identity, meta, HashUpdate{}); err != nil {
				return fmt.Errorf("refreshing record: %w", err)
			}
		case MetadataOnly:
			if _, err := s.index.Upsert(ctx, identity, meta, HashUpdate{}); err != nil {
				return fmt.Errorf("updating metadata: %w", err)
			}
		case NeedsRehash:
			// Nothing is committed until the pre-hash lands: a crash here
			// leaves the previous observation intact and retriable.
			identity, meta, path := identity, meta, path
			task := func() {
				if err := s.preHashOne(ctx, identity, meta, path, opts, summary, warn); err != nil {
					setStoreErr(err)
				}
			}
			if err := pool.Submit(ctx, task); err != nil {
				return err
			}
		}
		return nil
	})

	pool.Wait()
	if walkErr != nil {
		return walkErr
	}
	return storeErr
}

// preHashOne computes the cheap fingerprint for one file and commits
// the fresh observation in a single atomic upsert. Failures mark the
// file hash-failed: the record keeps no pre-hash, so the next scan
// takes the rehash path again.
func (s *ScanService) preHashOne(ctx context.Context, identity Identity, meta Meta, path *Path, opts ScanOptions, summary *ScanSummary, warn func(ScanWarning)) error {
	fingerprint, err := s.hashFile(ctx, path, meta.Size, s.pre)
	if err != nil {
		warn(ScanWarning{Path: path.String(), Stage: "pre-hash", Err: err})
		// Stale hashes must not outlive a content change.
		if _, uerr := s.index.Upsert(ctx, identity, meta, ResetHashes()); uerr != nil {
			return fmt.Errorf("clearing stale hashes: %w", uerr)
		}
		return nil
	}

	update := ResetHashes()
	update.PreHash = &fingerprint
	if _, err := s.index.Upsert(ctx, identity, meta, update); err != nil {
		return fmt.Errorf("storing pre-hash: %w", err)
	}
	summaryAdd(&summary.FilesPreHashed)

	s.runFingerprinters(ctx, identity, meta, path, opts, warn)
	return nil
}

// runFingerprinters applies the registered similarity fingerprinters
// when their scan option is enabled. With none registered this is a
// no-op; the core never populates phash or fuzzy_hash itself.
func (s *ScanService) runFingerprinters(ctx context.Context, identity Identity, meta Meta, path *Path, opts ScanOptions, warn func(ScanWarning)) {
	for _, fp := range s.fingerprinters {
		switch fp.Kind() {
		case PerceptualHash:
			if !opts.EnablePHash {
				continue
			}
		case FuzzyHash:
			if !opts.EnableFuzzy {
				continue
			}
		}

		f, err := s.fsmgr.Open(path)
		if err != nil {
			warn(ScanWarning{Path: path.String(), Stage: "fingerprint", Err: err})
			continue
		}
		value, err := fp.Fingerprint(ctx, path.String(), f)
		f.Close()
		if err != nil {
			warn(ScanWarning{Path: path.String(), Stage: "fingerprint", Err: err})
			continue
		}

		var update HashUpdate
		if fp.Kind() == PerceptualHash {
			update.PHash = &value
		} else {
			update.FuzzyHash = &value
		}
		if _, err := s.index.Upsert(ctx, identity, meta, update); err != nil {
			warn(ScanWarning{Path: path.String(), Stage: "fingerprint", Err: err})
		}
	}
}

// runStrongPhase confirms candidate buckets. Only pre-hash buckets with
// two or more members observed this scan are read in full; singletons
// never cost a full-content read.
func (s *ScanService) runStrongPhase(ctx context.Context, since time.Time, opts ScanOptions, summary *ScanSummary, warn func(ScanWarning)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	groups, err := s.index.GroupByPreHash(ctx, since)
	if err != nil {
		return fmt.Errorf("grouping candidates: %w", err)
	}

	pool := NewPool(s.tuning.Workers, s.tuning.QueueSize)
	defer pool.Wait()

	var mu sync.Mutex
	var storeErr error

	for _, records := range groups {
		if len(records) < 2 {
			continue
		}
		for _, rec := range records {
			if rec.Hashes.StrongHash.Valid {
				continue
			}
			rec := rec
			task := func() {
				err := s.strongHashOne(ctx, rec, summary, warn)
				if err != nil {
					mu.Lock()
					if storeErr == nil {
						storeErr = err
					}
					mu.Unlock()
				}
			}
			if err := pool.Submit(ctx, task); err != nil {
				pool.Wait()
				return err
			}
		}
	}

	pool.Wait()
	return storeErr
}

// strongHashOne streams one file through the strong hasher and commits
// the confirmed digest.
func (s *ScanService) strongHashOne(ctx context.Context, rec *Record, summary *ScanSummary, warn func(ScanWarning)) error {
	path, err := s.fsmgr.Resolve(rec.Meta.Path)
	if err != nil {
		warn(ScanWarning{Path: rec.Meta.Path, Stage: "strong-hash", Err: err})
		return nil
	}

	digest, err := s.hashFile(ctx, path, rec.Meta.Size, s.strong)
	if err != nil {
		warn(ScanWarning{Path: rec.Meta.Path, Stage: "strong-hash", Err: err})
		return nil
	}

	if _, err := s.index.Upsert(ctx, rec.Identity, rec.Meta, HashUpdate{StrongHash: &digest}); err != nil {
		return fmt.Errorf("storing strong hash: %w", err)
	}
	summaryAdd(&summary.FilesHashed)
	return nil
}

// hashFile opens a file and runs it through a hasher under the per-file
// read budget.
func (s *ScanService) hashFile(ctx context.Context, path *Path, size int64, h Hasher) (string, error) {
	if s.tuning.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.tuning.ReadTimeout)
		defer cancel()
	}

	f, err := s.fsmgr.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return h.Sum(ctx, f, size)
}

// Duplicates returns the current duplicate clusters from the index.
func (s *ScanService) Duplicates(ctx context.Context) ([]Cluster, error) {
	return Duplicates(ctx, s.index)
}

// Status summarizes the index.
func (s *ScanService) Status(ctx context.Context) (*IndexStats, error) {
	return s.index.Stats(ctx)
}
