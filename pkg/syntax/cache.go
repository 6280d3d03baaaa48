package syntax

import lru "github.com/hashicorp/golang-lru/v2"

// treeCache bounds the number of parsed trees kept alive at once. The
// cache holds one reference per entry; eviction releases that
// reference rather than closing the tree outright, since a handle
// returned to an earlier caller (see sitterTree) may still be open.
type treeCache struct {
	inner *lru.Cache[string, *sitterTreeCore]
}

func newTreeCache(size int) *treeCache {
	c, err := lru.NewWithEvict(size, func(_ string, evicted *sitterTreeCore) {
		evicted.release()
	})
	if err != nil {
		// size is always positive by construction in NewProvider.
		panic(err)
	}
	return &treeCache{inner: c}
}

// Get returns the cached core for key, retaining an additional
// reference on behalf of the caller's new handle. Returns nil on a
// cache miss.
func (c *treeCache) Get(key string) *sitterTreeCore {
	v, ok := c.inner.Get(key)
	if !ok {
		return nil
	}
	v.retain()
	return v
}

// Put registers core under key, taking the cache's own reference.
// Callers must already hold their own reference for the handle they
// return to the caller of Parse.
func (c *treeCache) Put(key string, core *sitterTreeCore) {
	core.retain()
	c.inner.Add(key, core)
}
