package availability

import (
	"sync"
	"time"
)

// Snapshot is what the cache remembers about one email.
type Snapshot struct {
	Exists   bool
	IsActive bool
	UserType string
	Status   string
}

type entry struct {
	data   Snapshot
	expiry time.Time
	hits   int64
}

// Stats describes cache occupancy at one instant.
type Stats struct {
	Size        int
	Valid       int
	Expired     int
	TotalHits   int64
	AverageHits float64
}

// cache is a mutex-guarded TTL map keyed by normalized email.
type cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func newCache(now func() time.Time) *cache {
	return &cache{entries: make(map[string]*entry), now: now}
}

// get returns a fresh entry and counts the hit. An expired entry is handed
// back as stale and kept until put or sweep replaces it, so every failed
// lookup during an outage can fall back to it.
func (c *cache) get(key string) (fresh *Snapshot, stale *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if c.now().Before(e.expiry) {
		e.hits++
		data := e.data
		return &data, nil
	}
	data := e.data
	return nil, &data
}

// peek returns the entry regardless of expiry without touching it.
func (c *cache) peek(key string) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	data := e.data
	return &data
}

func (c *cache) put(key string, data Snapshot, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{data: data, expiry: c.now().Add(ttl)}
}

func (c *cache) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *cache) clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*entry)
	return n
}

// sweep drops every expired entry and returns how many were removed.
func (c *cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiry) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *cache) stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	var s Stats
	s.Size = len(c.entries)
	for _, e := range c.entries {
		if now.Before(e.expiry) {
			s.Valid++
		} else {
			s.Expired++
		}
		s.TotalHits += e.hits
	}
	if s.Size > 0 {
		s.AverageHits = float64(s.TotalHits) / float64(s.Size)
	}
	return s
}
