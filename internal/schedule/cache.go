package schedule

import (
	"sync"
	"time"
)

// weekCache bounds memory for parsed weekly results. Keys are
// (group, ISO year, ISO week) so any date inside one ISO week reuses
// the same entry. Every lookup lazily prunes expired entries and then
// evicts oldest-inserted entries while over capacity; eviction only
// costs a future re-fetch, never correctness.
type weekCache struct {
	ttl      time.Duration
	capacity int

	mu    sync.Mutex
	seq   uint64
	items map[weekKey]weekEntry

	now func() time.Time // swappable for tests
}

type weekKey struct {
	groupID int
	year    int
	week    int
}

type weekEntry struct {
	at  time.Time
	seq uint64
	res WeekResult
}

func newWeekCache(ttl time.Duration, capacity int) *weekCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if capacity <= 0 {
		capacity = 256
	}
	return &weekCache{
		ttl:      ttl,
		capacity: capacity,
		items:    map[weekKey]weekEntry{},
		now:      time.Now,
	}
}

func keyFor(groupID int, date time.Time) weekKey {
	y, w := ISOWeekKey(date)
	return weekKey{groupID: groupID, year: y, week: w}
}

func (c *weekCache) get(groupID int, date time.Time) (WeekResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	e, ok := c.items[keyFor(groupID, date)]
	if !ok {
		return WeekResult{}, false
	}
	return e.res, true
}

// put stores a fully-built result. Partial results must never reach
// here; a key maps to a complete WeekResult or nothing.
func (c *weekCache) put(groupID int, date time.Time, res WeekResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.items[keyFor(groupID, date)] = weekEntry{at: c.now(), seq: c.seq, res: res}
	c.pruneLocked()
}

// sweep prunes expired and over-capacity entries immediately.
func (c *weekCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := len(c.items)
	c.pruneLocked()
	return before - len(c.items)
}

func (c *weekCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *weekCache) pruneLocked() {
	now := c.now()
	for k, e := range c.items {
		if now.Sub(e.at) > c.ttl {
			delete(c.items, k)
		}
	}
	// Evict oldest-inserted while over capacity.
	for len(c.items) > c.capacity {
		var oldest weekKey
		var oldestSeq uint64
		first := true
		for k, e := range c.items {
			if first || e.seq < oldestSeq {
				oldest, oldestSeq, first = k, e.seq, false
			}
		}
		delete(c.items, oldest)
	}
}
