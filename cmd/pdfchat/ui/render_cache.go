package ui

import (
	"hash/fnv"
	"strconv"
	"sync"
)

// RenderCache memoizes expensive renders (glamour markdown) keyed by their
// inputs. When full, the oldest entry is evicted.
type RenderCache struct {
	mu      sync.Mutex
	entries map[uint64]string
	order   []uint64
	maxSize int
	hits    int
	misses  int
}

// NewRenderCache creates a cache holding at most maxSize entries.
func NewRenderCache(maxSize int) *RenderCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &RenderCache{
		entries: make(map[uint64]string, maxSize),
		maxSize: maxSize,
	}
}

// ComputeKey derives a cache key from a content string and render width.
func ComputeKey(content string, width int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.Itoa(width)))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return h.Sum64()
}

// GetOrCompute returns the cached render for key, computing it on a miss.
func (rc *RenderCache) GetOrCompute(key uint64, compute func() string) string {
	rc.mu.Lock()
	if out, ok := rc.entries[key]; ok {
		rc.hits++
		rc.mu.Unlock()
		return out
	}
	rc.misses++
	rc.mu.Unlock()

	out := compute()

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if _, ok := rc.entries[key]; !ok {
		if len(rc.order) >= rc.maxSize {
			oldest := rc.order[0]
			rc.order = rc.order[1:]
			delete(rc.entries, oldest)
		}
		rc.order = append(rc.order, key)
	}
	rc.entries[key] = out
	return out
}

// Len returns the number of cached entries.
func (rc *RenderCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.entries)
}

// Stats returns hit and miss counts.
func (rc *RenderCache) Stats() (hits, misses int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.hits, rc.misses
}

// Clear empties the cache, e.g. after a resize invalidates every width.
func (rc *RenderCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries = make(map[uint64]string, rc.maxSize)
	rc.order = nil
}
