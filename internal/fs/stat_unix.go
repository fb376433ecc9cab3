//go:build unix

package fs

import (
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"syscall"

	"findup/internal/findup"
)

// Extract converts a stat result into the normalized identity and
// metadata record using the native device and inode numbers. ctime is
// captured raw; its meaning is platform-dependent and the change
// detector never consults it.
func (m *OSFilesystemManager) Extract(path *findup.Path, info fs.FileInfo) (findup.Identity, findup.Meta, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return findup.Identity{}, findup.Meta{}, fmt.Errorf("cannot extract stat data: expected *syscall.Stat_t, got %T", info.Sys())
	}

	identity := findup.Identity{
		Device: strconv.FormatUint(uint64(stat.Dev), 10),
		FileID: strconv.FormatUint(uint64(stat.Ino), 10),
	}

	meta := findup.Meta{
		Path:    path.String(),
		Size:    info.Size(),
		MtimeNS: info.ModTime().UnixNano(),
		CtimeNS: int64(stat.Ctim.Sec)*1_000_000_000 + int64(stat.Ctim.Nsec),
		// Birth time is not available on most Unix filesystems.
		BirthtimeNS: sql.NullInt64{},
		OwnerID: sql.NullString{
			String: strconv.FormatUint(uint64(stat.Uid), 10),
			Valid:  true,
		},
	}
	if name := m.owners.Lookup(meta.OwnerID.String); name != "" {
		meta.OwnerName = sql.NullString{String: name, Valid: true}
	}

	return identity, meta, nil
}
