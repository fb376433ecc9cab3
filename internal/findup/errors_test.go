package findup

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
)

func TestRecord_Validate(t *testing.T) {
	valid := func() *Record {
		return &Record{
			ID:       "row-1",
			Identity: Identity{Device: "100", FileID: "7"},
			Meta:     Meta{Path: "/a.txt", Size: 10},
			Hashes: Hashes{
				PreHash:    sql.NullString{String: "000000000000000a-1111111111111111", Valid: true},
				StrongHash: sql.NullString{String: "deadbeef", Valid: true},
			},
		}
	}

	t.Run("valid record passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Record)
		reason string
	}{
		{
			name:   "missing device",
			mutate: func(r *Record) { r.Identity.Device = "" },
			reason: "missing identity",
		},
		{
			name:   "missing file id",
			mutate: func(r *Record) { r.Identity.FileID = "" },
			reason: "missing identity",
		},
		{
			name:   "empty path",
			mutate: func(r *Record) { r.Meta.Path = "" },
			reason: "empty path",
		},
		{
			name:   "negative size",
			mutate: func(r *Record) { r.Meta.Size = -1 },
			reason: "negative size",
		},
		{
			name:   "strong hash without pre-hash",
			mutate: func(r *Record) { r.Hashes.PreHash = sql.NullString{} },
			reason: "strong hash present without pre-hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := valid()
			tt.mutate(rec)

			err := rec.Validate()
			var corrupt *CorruptRecordError
			if !errors.As(err, &corrupt) {
				t.Fatalf("Validate() error = %v, want CorruptRecordError", err)
			}
			if corrupt.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", corrupt.Reason, tt.reason)
			}
		})
	}
}

func TestScanWarning(t *testing.T) {
	cause := errors.New("permission denied")
	w := ScanWarning{Path: "/secret.txt", Stage: "pre-hash", Err: cause}

	if !errors.Is(w, cause) {
		t.Error("expected warning to unwrap to its cause")
	}
	msg := w.Error()
	if !strings.Contains(msg, "pre-hash") || !strings.Contains(msg, "/secret.txt") {
		t.Errorf("Error() = %q, missing stage or path", msg)
	}
}
