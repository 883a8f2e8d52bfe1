package correlator

import (
	"sync/atomic"

	"github.com/modryx/warden/internal/platform"
)

// Cache holds the per-group live-instance listings. The whole mapping is
// published atomically and per-group entries are replaced wholesale on
// each refresh, never patched, so lookups are lock-free. Staleness is
// bounded by the refresh interval.
type Cache struct {
	snapshot atomic.Pointer[map[string][]*platform.InstanceSummary]
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	c := &Cache{}
	empty := make(map[string][]*platform.InstanceSummary)
	c.snapshot.Store(&empty)

	return c
}

// Replace swaps in a fresh listing for one group. Writes happen only
// from the refresh loop, so the copy-then-publish is race-free.
func (c *Cache) Replace(groupID string, instances []*platform.InstanceSummary) {
	current := *c.snapshot.Load()

	next := make(map[string][]*platform.InstanceSummary, len(current)+1)
	for id, list := range current {
		next[id] = list
	}

	next[groupID] = instances
	c.snapshot.Store(&next)
}

// Drop removes a group no longer tracked so stale entries are never
// looked up.
func (c *Cache) Drop(groupID string) {
	current := *c.snapshot.Load()

	next := make(map[string][]*platform.InstanceSummary, len(current))
	for id, list := range current {
		if id != groupID {
			next[id] = list
		}
	}

	c.snapshot.Store(&next)
}

// Instances returns the cached listing for a group.
func (c *Cache) Instances(groupID string) []*platform.InstanceSummary {
	return (*c.snapshot.Load())[groupID]
}

// FindLocation scans the cached listings for an instance whose location
// matches, returning the owning group ID and the instance summary.
func (c *Cache) FindLocation(location string) (string, *platform.InstanceSummary, bool) {
	for groupID, instances := range *c.snapshot.Load() {
		for _, instance := range instances {
			if instance.Location == location {
				return groupID, instance, true
			}
		}
	}

	return "", nil, false
}
