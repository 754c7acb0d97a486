package services

import (
	"container/list"
	"sync"
)

// BucketCache is a bounded LRU from feature fingerprint to bucket key. It is
// owned by the orchestrator and shared by concurrent recommend calls.
type BucketCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mutex    sync.Mutex

	hits   uint64
	misses uint64
}

type bucketCacheEntry struct {
	fingerprint string
	key         string
}

// NewBucketCache creates a cache holding at most capacity entries. A
// non-positive capacity disables caching.
func NewBucketCache(capacity int) *BucketCache {
	return &BucketCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *BucketCache) Get(fingerprint string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	el, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		return "", false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*bucketCacheEntry).key, true
}

func (c *BucketCache) Put(fingerprint, key string) {
	if c == nil || c.capacity <= 0 {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if el, ok := c.entries[fingerprint]; ok {
		el.Value.(*bucketCacheEntry).key = key
		c.order.MoveToFront(el)
		return
	}

	c.entries[fingerprint] = c.order.PushFront(&bucketCacheEntry{fingerprint: fingerprint, key: key})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*bucketCacheEntry).fingerprint)
	}
}

func (c *BucketCache) Len() int {
	if c == nil {
		return 0
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.order.Len()
}

// Stats returns hit and miss counts since creation.
func (c *BucketCache) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.hits, c.misses
}
