package findup

import (
	"database/sql"
	"testing"
)

func baseRecord() *Record {
	return &Record{
		ID:       "row-1",
		Identity: Identity{Device: "100", FileID: "42"},
		Meta: Meta{
			Path:    "/docs/report.txt",
			Size:    1024,
			MtimeNS: 1_700_000_000_000_000_000,
			CtimeNS: 1_700_000_000_000_000_000,
			OwnerID: sql.NullString{String: "1000", Valid: true},
		},
		Hashes: Hashes{
			PreHash: sql.NullString{String: "0000000000000400-abcdef0123456789", Valid: true},
		},
	}
}

func TestDetectChange(t *testing.T) {
	tests := []struct {
		name string
		prev func() *Record
		meta func(Meta) Meta
		want Change
	}{
		{
			name: "no prior record",
			prev: func() *Record { return nil },
			meta: func(m Meta) Meta { return m },
			want: NeedsRehash,
		},
		{
			name: "identical observation",
			prev: baseRecord,
			meta: func(m Meta) Meta { return m },
			want: Unchanged,
		},
		{
			name: "size changed",
			prev: baseRecord,
			meta: func(m Meta) Meta { m.Size = 2048; return m },
			want: NeedsRehash,
		},
		{
			name: "mtime changed",
			prev: baseRecord,
			meta: func(m Meta) Meta { m.MtimeNS++; return m },
			want: NeedsRehash,
		},
		{
			name: "prior record has no pre-hash",
			prev: func() *Record {
				r := baseRecord()
				r.Hashes.PreHash = sql.NullString{}
				return r
			},
			meta: func(m Meta) Meta { return m },
			want: NeedsRehash,
		},
		{
			name: "renamed, same content",
			prev: baseRecord,
			meta: func(m Meta) Meta { m.Path = "/docs/renamed.txt"; return m },
			want: MetadataOnly,
		},
		{
			name: "ctime moved, content untouched",
			prev: baseRecord,
			meta: func(m Meta) Meta { m.CtimeNS++; return m },
			want: MetadataOnly,
		},
		{
			name: "owner changed",
			prev: baseRecord,
			meta: func(m Meta) Meta {
				m.OwnerID = sql.NullString{String: "1001", Valid: true}
				return m
			},
			want: MetadataOnly,
		},
		{
			name: "size change wins over rename",
			prev: baseRecord,
			meta: func(m Meta) Meta {
				m.Path = "/docs/renamed.txt"
				m.Size = 2048
				return m
			},
			want: NeedsRehash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := tt.prev()
			meta := tt.meta(baseRecord().Meta)
			if got := DetectChange(prev, meta); got != tt.want {
				t.Errorf("DetectChange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResetHashes(t *testing.T) {
	upd := ResetHashes()
	for name, f := range map[string]*string{
		"PreHash":    upd.PreHash,
		"StrongHash": upd.StrongHash,
		"PHash":      upd.PHash,
		"FuzzyHash":  upd.FuzzyHash,
	} {
		if f == nil {
			t.Errorf("%s = nil, want pointer to empty string", name)
		} else if *f != "" {
			t.Errorf("%s = %q, want empty string", name, *f)
		}
	}
}

func TestChange_String(t *testing.T) {
	if got := Unchanged.String(); got != "unchanged" {
		t.Errorf("Unchanged.String() = %q", got)
	}
	if got := NeedsRehash.String(); got != "needs-rehash" {
		t.Errorf("NeedsRehash.String() = %q", got)
	}
}
