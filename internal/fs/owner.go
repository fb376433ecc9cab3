package fs

import (
	"os/user"
	"sync"
)

// OwnerResolver resolves numeric owner IDs to user names, lazily and
// with a cache. Misses are cheap, so identity extraction resolves the
// name at stat time.
type OwnerResolver struct {
	mu    sync.Mutex
	cache map[string]string
}

func NewOwnerResolver() *OwnerResolver {
	return &OwnerResolver{cache: make(map[string]string)}
}

// Lookup returns the user name for a numeric owner ID, or "" when the
// ID cannot be resolved. Failures are cached too; a missing passwd
// entry should not be retried per file.
func (r *OwnerResolver) Lookup(ownerID string) string {
	if ownerID == "" {
		return ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.cache[ownerID]; ok {
		return name
	}

	name := ""
	if u, err := user.LookupId(ownerID); err == nil {
		name = u.Username
	}
	r.cache[ownerID] = name
	return name
}
