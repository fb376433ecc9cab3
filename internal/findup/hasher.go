package findup

import (
	"context"
	"io"
)

// Hasher is the pluggable content-fingerprint capability. The pre-hash
// stage and the strong-hash stage are both Hashers; implementations are
// selected by configuration, never hard-wired.
type Hasher interface {
	// Name identifies the strategy (e.g. "xxh64-sampled", "sha256").
	Name() string

	// Sum reads content from r and returns the fingerprint as a string.
	// size is the file size as reported by stat; sampling hashers use it
	// to position their windows. Sum must honor ctx cancellation.
	Sum(ctx context.Context, r io.Reader, size int64) (string, error)
}

// FingerprintKind distinguishes the reserved similarity fingerprints.
type FingerprintKind int

const (
	PerceptualHash FingerprintKind = iota
	FuzzyHash
)

// Fingerprinter is the extension point for the future near-duplicate
// layer. The core registers no implementations; scan options merely
// forward to whatever the caller wired in.
type Fingerprinter interface {
	Name() string
	Kind() FingerprintKind
	Fingerprint(ctx context.Context, path string, r io.Reader) (string, error)
}
