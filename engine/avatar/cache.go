package avatar

import "sync"

// cache maps keys to their classification. It is the single source of truth
// read by every instance sharing a key.
type cache struct {
	mu sync.Mutex

	entries map[Key]Classification
}

func newCache() *cache {
	return &cache{
		mu:      sync.Mutex{},
		entries: make(map[Key]Classification),
	}
}

// get returns the classification of key. A miss returns the zero Classification.
func (c *cache) get(key Key) Classification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key]
}

// reserve inserts Checking for key if there is no entry yet.
// It returns the entry found and whether the caller now owns the decode for key.
func (c *cache) reserve(key Key) (Classification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, false
	}
	c.entries[key] = Checking()
	return Checking(), true
}

// publish replaces the entry for key with a terminal classification.
func (c *cache) publish(key Key, cls Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cls
}

// counts returns the number of entries of each kind.
func (c *cache) counts() map[Kind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Kind]int, 3)
	for _, cls := range c.entries {
		out[cls.Kind]++
	}
	return out
}
