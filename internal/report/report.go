package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"findup/internal/findup"
)

// cluster is the serialized shape of one duplicate cluster. Field order
// and names are part of the report contract for downstream tooling.
type cluster struct {
	StrongHash       string   `json:"strong_hash"`
	Confidence       float64  `json:"confidence"`
	ReclaimableBytes int64    `json:"reclaimable_bytes"`
	Members          []member `json:"members"`
}

type member struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Device string `json:"device"`
	FileID string `json:"file_id"`
}

func convert(clusters []findup.Cluster) []cluster {
	out := make([]cluster, len(clusters))
	for i, c := range clusters {
		members := make([]member, len(c.Members))
		for j, m := range c.Members {
			members[j] = member{Path: m.Path, Size: m.Size, Device: m.Identity.Device, FileID: m.Identity.FileID}
		}
		out[i] = cluster{
			StrongHash:       c.StrongHash,
			Confidence:       c.Confidence,
			ReclaimableBytes: c.ReclaimableBytes,
			Members:          members,
		}
	}
	return out
}

// WriteDuplicates serializes clusters to w in the requested format:
// "json" (one indented array), "ndjson" (one cluster per line) or
// "csv" (flattened rows with a synthetic cluster_id, stable column
// order).
func WriteDuplicates(w io.Writer, clusters []findup.Cluster, format string) error {
	rows := convert(clusters)

	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case "ndjson":
		enc := json.NewEncoder(w)
		for _, c := range rows {
			if err := enc.Encode(c); err != nil {
				return fmt.Errorf("encoding cluster: %w", err)
			}
		}
		return nil

	case "csv":
		cw := csv.NewWriter(w)
		header := []string{"cluster_id", "path", "size", "device", "file_id", "strong_hash"}
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("writing csv header: %w", err)
		}
		for i, c := range rows {
			for _, m := range c.Members {
				row := []string{
					strconv.Itoa(i + 1),
					m.Path,
					strconv.FormatInt(m.Size, 10),
					m.Device,
					m.FileID,
					c.StrongHash,
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("writing csv row: %w", err)
				}
			}
		}
		cw.Flush()
		return cw.Error()

	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// ResolveTarget decides where a report file lands. An empty out means
// ./duplicates.<format>; an existing directory gets the default file
// name inside it; anything else is treated as a file path.
func ResolveTarget(out, format string) string {
	if format == "" {
		format = "json"
	}
	defaultName := "duplicates." + format

	if out == "" {
		return defaultName
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, defaultName)
	}
	return out
}

// WriteDuplicatesFile writes a report to the path chosen by
// ResolveTarget, creating parent directories as needed. It returns the
// path written.
func WriteDuplicatesFile(out, format string, clusters []findup.Cluster) (string, error) {
	target := ResolveTarget(out, format)

	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating report directory: %w", err)
		}
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if err := WriteDuplicates(f, clusters, format); err != nil {
		return "", err
	}
	return target, nil
}
