package cache

import (
	"fmt"

	models "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TypeCache remembers the type of documents. A document never changes
// type, so entries are never invalidated, only evicted.
type TypeCache struct {
	cache *lru.Cache[int64, models.DocumentType]
}

// NewTypeCache creates a cache holding at most size entries.
func NewTypeCache(size int) (*TypeCache, error) {
	c, err := lru.New[int64, models.DocumentType](size)
	if err != nil {
		return nil, fmt.Errorf("create type cache: %w", err)
	}
	return &TypeCache{cache: c}, nil
}

// Lookup splits ids into known types and misses.
func (c *TypeCache) Lookup(ids []int64) (map[int64]models.DocumentType, []int64) {
	found := make(map[int64]models.DocumentType, len(ids))
	var misses []int64
	for _, id := range ids {
		if t, ok := c.cache.Get(id); ok {
			found[id] = t
		} else {
			misses = append(misses, id)
		}
	}
	return found, misses
}

// Add stores resolved types.
func (c *TypeCache) Add(types map[int64]models.DocumentType) {
	for id, t := range types {
		c.cache.Add(id, t)
	}
}

// Len returns the number of cached entries.
func (c *TypeCache) Len() int {
	return c.cache.Len()
}
