package hashing

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"testing"
)

var fingerprintRe = regexp.MustCompile(`^[0-9a-f]{16}-[0-9a-f]{16}$`)

func sum(t *testing.T, h *PreHasher, data []byte) string {
	t.Helper()
	got, err := h.Sum(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Sum() error = %v", err)
	}
	return got
}

func TestPreHasher_Sum(t *testing.T) {
	h := NewPreHasher(0, 0)

	t.Run("fingerprint format", func(t *testing.T) {
		got := sum(t, h, []byte("hello"))
		if !fingerprintRe.MatchString(got) {
			t.Errorf("fingerprint %q does not match size-digest format", got)
		}
	})

	t.Run("equal content yields equal fingerprints", func(t *testing.T) {
		a := sum(t, h, []byte("identical bytes"))
		b := sum(t, h, []byte("identical bytes"))
		if a != b {
			t.Errorf("fingerprints differ: %q vs %q", a, b)
		}
	})

	t.Run("different content yields different fingerprints", func(t *testing.T) {
		a := sum(t, h, []byte("content one"))
		b := sum(t, h, []byte("content two"))
		if a == b {
			t.Errorf("distinct content collided: %q", a)
		}
	})

	t.Run("size is part of the fingerprint", func(t *testing.T) {
		data := []byte("prefix data")
		a, err := h.Sum(context.Background(), bytes.NewReader(data), int64(len(data)))
		if err != nil {
			t.Fatalf("Sum() error = %v", err)
		}
		b, err := h.Sum(context.Background(), bytes.NewReader(data), int64(len(data))+1)
		if err != nil {
			t.Fatalf("Sum() error = %v", err)
		}
		if a == b {
			t.Error("same bytes under different reported sizes share a fingerprint")
		}
	})

	t.Run("empty content", func(t *testing.T) {
		got := sum(t, h, nil)
		if !fingerprintRe.MatchString(got) {
			t.Errorf("fingerprint %q invalid for empty input", got)
		}
	})
}

func TestPreHasher_Sampling(t *testing.T) {
	// Tiny windows so sampling kicks in without megabytes of test data.
	h := NewPreHasher(16, 64)

	base := bytes.Repeat([]byte("x"), 1024)

	t.Run("change inside a window is detected", func(t *testing.T) {
		a := sum(t, h, base)

		tail := append([]byte(nil), base...)
		tail[len(tail)-1] = 'y'
		b := sum(t, h, tail)

		if a == b {
			t.Error("tail change not reflected in sampled fingerprint")
		}
	})

	t.Run("change between windows is invisible", func(t *testing.T) {
		a := sum(t, h, base)

		// Offset 100 lies after the head window (0..16) and before the
		// middle window (504..520).
		gap := append([]byte(nil), base...)
		gap[100] = 'y'
		b := sum(t, h, gap)

		if a != b {
			t.Error("sampled fingerprint read outside its windows")
		}
	})

	t.Run("non-seekable reader is read in full", func(t *testing.T) {
		gap := append([]byte(nil), base...)
		gap[100] = 'y'

		a, err := h.Sum(context.Background(), io.MultiReader(bytes.NewReader(base)), int64(len(base)))
		if err != nil {
			t.Fatalf("Sum() error = %v", err)
		}
		b, err := h.Sum(context.Background(), io.MultiReader(bytes.NewReader(gap)), int64(len(gap)))
		if err != nil {
			t.Fatalf("Sum() error = %v", err)
		}
		if a == b {
			t.Error("full read missed a mid-file change")
		}
	})
}

func TestPreHasher_Cancellation(t *testing.T) {
	h := NewPreHasher(0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Sum(ctx, bytes.NewReader([]byte("data")), 4)
	if err != context.Canceled {
		t.Errorf("Sum() error = %v, want context.Canceled", err)
	}
}

func TestPreHasher_Name(t *testing.T) {
	if got := NewPreHasher(0, 0).Name(); got != "xxh64-sampled-65536" {
		t.Errorf("Name() = %q", got)
	}
}
