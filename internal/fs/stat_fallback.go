//go:build !unix

package fs

import (
	"database/sql"
	"io/fs"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"findup/internal/findup"
)

// Extract builds identity and metadata on platforms without native
// inode numbers. The synthetic file ID is derived from the path, so it
// stays stable across scans while the path does; a rename on such a
// platform reads as a new identity and costs one extra rehash.
func (m *OSFilesystemManager) Extract(path *findup.Path, info fs.FileInfo) (findup.Identity, findup.Meta, error) {
	identity := findup.Identity{
		Device: "0",
		FileID: strconv.FormatUint(xxhash.Sum64String(path.String()), 16),
	}

	meta := findup.Meta{
		Path:        path.String(),
		Size:        info.Size(),
		MtimeNS:     info.ModTime().UnixNano(),
		BirthtimeNS: sql.NullInt64{},
	}

	return identity, meta, nil
}
