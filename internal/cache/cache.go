// Package cache implements a size-bounded, reference-counted object cache:
// entries are evicted oldest-first once the cache exceeds a size budget,
// but an entry still checked out by a caller is never evicted out from
// under it.
package cache

import (
	"log"
	"sync"
	"sync/atomic"
)

// Sizeable is anything a Cache can account for by an approximate byte (or
// other unit) cost, charged against the cache's total-size budget.
type Sizeable interface {
	Size() int
}

// box holds one cached value plus the reference count the cache uses to
// decide whether the value may be evicted: 1 while only the cache itself
// holds it, >1 while one or more callers also hold a Ref.
type box[V Sizeable] struct {
	value V
	count int32
}

// Ref is a checked-out handle on a cached value. The holder must call
// Release when done; until every outstanding Ref is released, Cache will
// not evict the entry it was checked out from.
type Ref[V Sizeable] struct {
	b        *box[V]
	released int32
}

// Value returns the checked-out value.
func (r *Ref[V]) Value() V { return r.b.value }

// Release gives up this reference. It is safe to call at most once per Ref;
// additional calls are no-ops.
func (r *Ref[V]) Release() {
	if atomic.CompareAndSwapInt32(&r.released, 0, 1) {
		atomic.AddInt32(&r.b.count, -1)
	}
}

func (r *Ref[V]) acquireAnother() *Ref[V] {
	atomic.AddInt32(&r.b.count, 1)
	return &Ref[V]{b: r.b}
}

type entry[V Sizeable] struct {
	held    *Ref[V] // the cache's own reference; nil while empty
	lastUse int
	size    int
}

func (e *entry[V]) isEmpty() bool { return e.held == nil }

// Cache is a key/value store bounded by total accounted size rather than
// entry count, evicting the least-recently-used entry first.
type Cache[Key comparable, V Sizeable] struct {
	mu        sync.Mutex
	useCount  int
	totalSize int
	entries   []*entry[V]
	index     map[Key]int

	// Logger receives shrink-to-fit diagnostics; nil disables logging.
	Logger *log.Logger
}

// New returns an empty Cache.
func New[Key comparable, V Sizeable]() *Cache[Key, V] {
	return &Cache[Key, V]{index: make(map[Key]int)}
}

// Contains reports whether k names a currently-filled entry.
func (c *Cache[Key, V]) Contains(k Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.index[k]
	return ok && !c.entries[idx].isEmpty()
}

// TotalSize returns the sum of Size() over every currently-filled entry.
func (c *Cache[Key, V]) TotalSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize
}

// Insert adds v under k, reusing k's slot if it was previously emptied by
// ShrinkTo. It reports false (and leaves the cache unchanged) if k already
// names a filled entry; a live value is never clobbered.
func (c *Cache[Key, V]) Insert(k Key, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := v.Size()
	if idx, ok := c.index[k]; ok {
		e := c.entries[idx]
		if !e.isEmpty() {
			return false
		}
		e.held = &Ref[V]{b: &box[V]{value: v, count: 1}}
		e.lastUse = c.useCount
		e.size = size
		c.useCount++
		c.totalSize += size
		return true
	}

	e := &entry[V]{
		held:    &Ref[V]{b: &box[V]{value: v, count: 1}},
		lastUse: c.useCount,
		size:    size,
	}
	c.entries = append(c.entries, e)
	c.index[k] = len(c.entries) - 1
	c.useCount++
	c.totalSize += size
	return true
}

// Get checks out the value stored under k, bumping its last-use rank and
// returning a Ref the caller must Release. It reports false if k is absent
// or was evicted.
func (c *Cache[Key, V]) Get(k Key) (*Ref[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[k]
	if !ok {
		return nil, false
	}
	e := c.entries[idx]
	if e.isEmpty() {
		return nil, false
	}
	e.lastUse = c.useCount
	c.useCount++
	return e.held.acquireAnother(), true
}

// ShrinkTo evicts filled entries oldest-first until the cache's total size
// is at most size or every entry has been considered. An entry still
// checked out by a live Ref (count > 1) is skipped rather than evicted, and
// the walk continues past it to the next-oldest (more recently used) entries. It returns true if the
// budget was met.
func (c *Cache[Key, V]) ShrinkTo(size int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Logger != nil {
		c.Logger.Printf("cache: shrink to %d when at %d", size, c.totalSize)
	}
	if c.totalSize <= size {
		return true
	}

	for _, idx := range c.indicesByAge() {
		if c.totalSize <= size {
			return true
		}
		e := c.entries[idx]
		if e.isEmpty() {
			continue
		}
		if atomic.LoadInt32(&e.held.b.count) != 1 {
			continue
		}
		c.totalSize -= e.size
		e.held = nil
	}
	return c.totalSize <= size
}

func (c *Cache[Key, V]) indicesByAge() []int {
	indices := make([]int, len(c.entries))
	for i := range indices {
		indices[i] = i
	}
	for i := 1; i < len(indices); i++ {
		for j := i; j > 0 && c.entries[indices[j]].lastUse < c.entries[indices[j-1]].lastUse; j-- {
			indices[j], indices[j-1] = indices[j-1], indices[j]
		}
	}
	return indices
}
