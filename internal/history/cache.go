package history

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/Resinat/dohswitch/internal/endpoint"
)

const (
	// DefaultAPILimit is the ring size behind the history and analytics queries.
	DefaultAPILimit = 20
	// DefaultBroadcastLimit is the ring size behind pushed status events.
	DefaultBroadcastLimit = 100
)

// Cache keeps one Ring per endpoint. It is a read accelerator in front of
// the Repo and is rebuilt empty on restart.
type Cache struct {
	capacity int
	rings    *xsync.Map[endpoint.Key, *Ring]
}

// NewCache creates a cache whose rings hold capacity samples each.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultAPILimit
	}
	return &Cache{
		capacity: capacity,
		rings:    xsync.NewMap[endpoint.Key, *Ring](),
	}
}

// Capacity returns the per-endpoint ring size.
func (c *Cache) Capacity() int { return c.capacity }

// Append pushes s onto the ring of key, creating the ring on first use.
// Appends to the same key are serialized.
func (c *Cache) Append(key endpoint.Key, s Sample) {
	c.rings.Compute(key, func(ring *Ring, loaded bool) (*Ring, xsync.ComputeOp) {
		if !loaded || ring == nil {
			ring = NewRing(c.capacity)
		}
		ring.Push(s)
		return ring, xsync.UpdateOp
	})
}

// Recent returns the cached samples of key, oldest first.
func (c *Cache) Recent(key endpoint.Key) []Sample {
	ring, ok := c.rings.Load(key)
	if !ok {
		return []Sample{}
	}
	return ring.Snapshot()
}

// Latest returns the newest cached sample of key.
func (c *Cache) Latest(key endpoint.Key) (Sample, bool) {
	ring, ok := c.rings.Load(key)
	if !ok {
		return Sample{}, false
	}
	return ring.Latest()
}

// Len returns the number of cached samples for key.
func (c *Cache) Len(key endpoint.Key) int {
	ring, ok := c.rings.Load(key)
	if !ok {
		return 0
	}
	return ring.Len()
}

// Clear drops the ring of key, or every ring when key is empty.
func (c *Cache) Clear(key endpoint.Key) {
	if key.IsZero() {
		c.rings.Clear()
		return
	}
	c.rings.Delete(key)
}

// Keys returns the endpoints that currently have a ring, sorted.
func (c *Cache) Keys() []endpoint.Key {
	keys := make([]endpoint.Key, 0, c.rings.Size())
	c.rings.Range(func(k endpoint.Key, _ *Ring) bool {
		keys = append(keys, k)
		return true
	})
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
