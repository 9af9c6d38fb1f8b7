package oracle

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache holds the last good snapshot per pair for a bounded time.
// It is owned by the caller and handed to the Oracle explicitly.
type Cache struct {
	store *gocache.Cache
}

// NewCache creates a snapshot cache with the given time-to-live.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Cache{store: gocache.New(ttl, 2*ttl)}
}

// Get returns a copy of the cached snapshot for pair.
func (c *Cache) Get(pair string) (*Snapshot, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.store.Get(pair)
	if !ok {
		return nil, false
	}
	snap := v.(Snapshot)
	return &snap, true
}

// Set stores a copy of snap under its pair.
func (c *Cache) Set(snap *Snapshot) {
	if c == nil || snap == nil {
		return
	}
	c.store.SetDefault(snap.Symbol, *snap)
}

// Flush drops every cached snapshot.
func (c *Cache) Flush() {
	if c == nil {
		return
	}
	c.store.Flush()
}
