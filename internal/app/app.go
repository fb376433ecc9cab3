package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"findup/internal/config"
	"findup/internal/findup"
	"findup/internal/fs"
	"findup/internal/hashing"
	"findup/internal/index"
)

// FindupApp is the application layer between the CLI and ScanService.
// It constructs all dependencies from config, exposes high-level
// operations that accept raw string paths, and manages the index
// lifecycle on Close.
type FindupApp struct {
	cfg     *config.Config
	idx     findup.Index
	fsmgr   findup.FilesystemManager
	service *findup.ScanService
	logFile *os.File
}

// NewFindupApp creates a fully wired FindupApp from the given config.
// operation identifies the CLI command being run (e.g. "Scan", "Dupes").
// The caller must call Close when done.
func NewFindupApp(cfg *config.Config, operation string) (*FindupApp, error) {
	fsmgr := fs.NewOSFilesystemManager()

	idx, err := index.NewIndexFromConfig(cfg.Database, findup.UUIDGenerator{})
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	pre := hashing.NewPreHasher(cfg.Scan.PreHashWindow, cfg.Scan.SmallFileLimit)

	strong, err := hashing.NewStrongHasher(cfg.Scan.StrongAlgorithm)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("creating strong hasher: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	tuning := findup.Tuning{
		Workers:     cfg.Scan.Workers,
		QueueSize:   cfg.Scan.QueueSize,
		ReadTimeout: cfg.Scan.ReadTimeout(),
	}

	svc := findup.NewScanService(idx, fsmgr, pre, strong, &slogAdapter{l: logger}, findup.RealClock{}, findup.UUIDGenerator{}, tuning)

	return &FindupApp{
		cfg:     cfg,
		idx:     idx,
		fsmgr:   fsmgr,
		service: svc,
		logFile: logFile,
	}, nil
}

// ScanFlags carries per-invocation scan switches from the CLI.
type ScanFlags struct {
	EnablePHash bool
	EnableFuzzy bool
	Progress    int64
}

// Scan resolves the given path and runs a full scan rooted there.
func (a *FindupApp) Scan(ctx context.Context, rawPath string, flags ScanFlags) (*findup.ScanSummary, error) {
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if !p.IsDir() {
		return nil, fmt.Errorf("scan root must be a directory: %s", p)
	}

	// Patterns from a .findupignore in the scan root stack on top of
	// the configured ones.
	patterns := a.cfg.Filesystem.Ignore
	extra, err := fs.ParseIgnoreFile(filepath.Join(p.String(), ".findupignore"))
	if err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	patterns = append(append([]string{".findupignore"}, patterns...), extra...)

	opts := findup.ScanOptions{
		EnablePHash:      flags.EnablePHash,
		EnableFuzzy:      flags.EnableFuzzy,
		ProgressInterval: flags.Progress,
		Ignore:           fs.NewIgnoreMatcher(patterns),
	}
	return a.service.Scan(ctx, p, opts)
}

// Duplicates returns all exact duplicate clusters currently in the index.
func (a *FindupApp) Duplicates(ctx context.Context) ([]findup.Cluster, error) {
	return a.service.Duplicates(ctx)
}

// Status returns aggregate index statistics.
func (a *FindupApp) Status(ctx context.Context) (*findup.IndexStats, error) {
	return a.service.Status(ctx)
}

// Close closes the index and the log file.
func (a *FindupApp) Close() error {
	var firstErr error

	if err := a.idx.Close(); err != nil {
		firstErr = fmt.Errorf("closing index: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
