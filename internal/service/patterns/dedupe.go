package patterns

import (
	"container/list"
	"sync"
)

// keyCache is a bounded LRU set of already-emitted pattern keys. Once full,
// the oldest key is evicted first, so eviction order is deterministic and
// testable. It is process-global state shared by every session.
type keyCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = oldest
	index    map[string]*list.Element
}

func newKeyCache(capacity int) *keyCache {
	if capacity <= 0 {
		capacity = 20000
	}
	return &keyCache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Seen records key and reports whether it was already present. A re-seen key
// is refreshed to most-recently-used.
func (c *keyCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.order.MoveToBack(el)
		return true
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(string))
		}
	}
	c.index[key] = c.order.PushBack(key)
	return false
}

// Len reports the number of cached keys.
func (c *keyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Reset drops every cached key.
func (c *keyCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[string]*list.Element, c.capacity)
}
