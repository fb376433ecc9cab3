package findup

import (
	"context"
	"sort"
)

// Member is one file inside a duplicate cluster.
type Member struct {
	Path     string
	Identity Identity
	Size     int64
}

// Cluster is a maximal set of identities sharing a confirmed strong
// hash. Confidence is 1.0 for exact matches; the field exists so a
// future similarity layer can emit partial-confidence clusters without
// a new type. Member order is presentation-only and never a deletion
// hint.
type Cluster struct {
	StrongHash       string
	Members          []Member
	Confidence       float64
	ReclaimableBytes int64 // total size minus one kept copy
}

// Duplicates groups index records by confirmed strong hash into
// deterministic clusters of two or more members. Clusters are ordered
// by descending reclaimable size, then by strong hash; members within a
// cluster are ordered by path. The result depends only on index
// content, never on scan or hash completion order.
func Duplicates(ctx context.Context, index Index) ([]Cluster, error) {
	groups, err := index.GroupByStrongHash(ctx)
	if err != nil {
		return nil, err
	}

	clusters := make([]Cluster, 0, len(groups))
	for hash, records := range groups {
		if len(records) < 2 {
			continue
		}
		members := make([]Member, len(records))
		var total int64
		for i, rec := range records {
			members[i] = Member{Path: rec.Meta.Path, Identity: rec.Identity, Size: rec.Meta.Size}
			total += rec.Meta.Size
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
		clusters = append(clusters, Cluster{
			StrongHash:       hash,
			Members:          members,
			Confidence:       1.0,
			ReclaimableBytes: total - members[0].Size,
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].ReclaimableBytes != clusters[j].ReclaimableBytes {
			return clusters[i].ReclaimableBytes > clusters[j].ReclaimableBytes
		}
		return clusters[i].StrongHash < clusters[j].StrongHash
	})

	return clusters, nil
}
