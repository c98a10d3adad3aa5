package embed

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache holds recently computed vectors keyed by mode and text content.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an LRU cache. A non-positive size returns nil, which disables caching.
func NewCache(size int) *Cache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil
	}
	return &Cache{cache: c}
}

func cacheKey(mode EmbedMode, text string) string {
	h := sha256.Sum256([]byte(string(mode) + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// Get returns a copy of the cached vector.
func (c *Cache) Get(mode EmbedMode, text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.cache.Get(cacheKey(mode, text))
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// Add stores a copy of v.
func (c *Cache) Add(mode EmbedMode, text string, v []float32) {
	if c == nil {
		return
	}
	c.cache.Add(cacheKey(mode, text), append([]float32(nil), v...))
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
