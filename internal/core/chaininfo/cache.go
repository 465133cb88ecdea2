package chaininfo

import (
	"sync/atomic"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// Cache holds the latest chain snapshot. Reads never block.
type Cache struct {
	current atomic.Pointer[core.ChainSnapshot]
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Current returns the latest snapshot, or nil before the first refresh.
func (c *Cache) Current() *core.ChainSnapshot {
	if c == nil {
		return nil
	}
	return c.current.Load()
}

// Store replaces the snapshot. The value must not be mutated afterwards.
func (c *Cache) Store(snapshot *core.ChainSnapshot) {
	if c == nil {
		return
	}
	c.current.Store(snapshot)
}
