package hashing

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"findup/internal/findup"
)

// StrongHasher computes the full-content cryptographic digest that
// confirms exact duplicates. Content is streamed in fixed chunks, so
// memory stays bounded regardless of file size.
type StrongHasher struct {
	name    string
	newFunc func() hash.Hash
}

// NewStrongHasher returns a hasher for the named algorithm. Supported:
// "sha256" (default when empty) and "sha512".
func NewStrongHasher(algorithm string) (*StrongHasher, error) {
	switch algorithm {
	case "", "sha256":
		return &StrongHasher{name: "sha256", newFunc: sha256.New}, nil
	case "sha512":
		return &StrongHasher{name: "sha512", newFunc: sha512.New}, nil
	default:
		return nil, fmt.Errorf("unsupported strong hash algorithm: %s", algorithm)
	}
}

func (h *StrongHasher) Name() string { return h.name }

// Sum streams the entire content of r through the digest and returns it
// hex-encoded.
func (h *StrongHasher) Sum(ctx context.Context, r io.Reader, _ int64) (string, error) {
	digest := h.newFunc()
	if err := copyChunks(ctx, digest, r, -1); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// Compile-time check that StrongHasher implements findup.Hasher.
var _ findup.Hasher = (*StrongHasher)(nil)
