package classifier

import (
	"container/list"
	"sync"
)

// ResultCache is an LRU cache of classification results keyed by query content id.
// Results are shared; callers must not modify them.
type ResultCache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	hits     int
	misses   int
}

type cacheEntry struct {
	key    string
	result *Result
}

// NewResultCache creates a cache holding at most capacity results. A capacity
// below one disables caching.
func NewResultCache(capacity int) *ResultCache {
	return &ResultCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached result for key if present.
func (c *ResultCache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		c.hits++
		return elem.Value.(*cacheEntry).result, true
	}
	c.misses++
	return nil, false
}

// Put stores res under key, evicting the least recently used entry when full.
func (c *ResultCache) Put(key string, res *Result) {
	if c.capacity < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).result = res
		return
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, result: res})
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns the hit and miss counts since creation.
func (c *ResultCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
