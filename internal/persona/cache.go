package persona

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TwinSource provides twin personas by id (the twin store).
type TwinSource interface {
	GetTwin(ctx context.Context, twinID string) (*Twin, error)
}

// Cache is a read-through LRU in front of a TwinSource. Twins are authored
// read-only content, so entries never invalidate during a run.
type Cache struct {
	src   TwinSource
	cache *lru.Cache[string, *Twin]
}

// NewCache creates a cache holding up to size twins.
func NewCache(src TwinSource, size int) *Cache {
	if size <= 0 {
		size = 64
	}
	c, _ := lru.New[string, *Twin](size)
	return &Cache{src: src, cache: c}
}

// Get returns the twin by id, hitting the source on a miss. A nil twin with
// nil error means the twin does not exist (not cached).
func (c *Cache) Get(ctx context.Context, twinID string) (*Twin, error) {
	if t, ok := c.cache.Get(twinID); ok {
		return t, nil
	}
	t, err := c.src.GetTwin(ctx, twinID)
	if err != nil || t == nil {
		return t, err
	}
	c.cache.Add(twinID, t)
	return t, nil
}
