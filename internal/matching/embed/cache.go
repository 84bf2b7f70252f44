package embed

import "sync"

// VectorCache is the process-lifetime embedding cache, keyed by the content
// hash of the normalized text. Entries are created lazily and never evicted
// within a run; a changed description produces a new hash and a new entry.
//
// Concurrent population is safe: because the embedder is pure, duplicate
// computation for the same hash resolves to the same value, and last-write-
// wins under the lock can never leave two different vectors for one key.
type VectorCache struct {
	mu   sync.RWMutex
	vecs map[uint64][]float64
}

// NewVectorCache creates an empty VectorCache.
func NewVectorCache() *VectorCache {
	return &VectorCache{vecs: make(map[uint64][]float64)}
}

// Get returns the cached vector for hash, if present. Callers must treat the
// returned slice as read-only.
func (c *VectorCache) Get(hash uint64) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.vecs[hash]
	return vec, ok
}

// Put stores a vector for hash.
func (c *VectorCache) Put(hash uint64, vec []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vecs[hash] = vec
}

// Len returns the number of cached vectors.
func (c *VectorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vecs)
}
