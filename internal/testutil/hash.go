package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync/atomic"

	"findup/internal/findup"
)

// SHA256Hex returns the SHA-256 checksum of data as a lowercase hex string.
// Matches the default strong digest format.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// CountingHasher wraps a Hasher and counts Sum calls, so tests can
// assert how many files were actually read and digested.
type CountingHasher struct {
	inner findup.Hasher
	calls atomic.Int64
}

func NewCountingHasher(inner findup.Hasher) *CountingHasher {
	return &CountingHasher{inner: inner}
}

func (c *CountingHasher) Name() string { return c.inner.Name() }

func (c *CountingHasher) Sum(ctx context.Context, r io.Reader, size int64) (string, error) {
	c.calls.Add(1)
	return c.inner.Sum(ctx, r, size)
}

// Calls reports how many times Sum ran.
func (c *CountingHasher) Calls() int64 { return c.calls.Load() }

var _ findup.Hasher = (*CountingHasher)(nil)
