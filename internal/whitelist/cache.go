package whitelist

import (
	"time"
)

// pairCache holds the last dynamic whitelist and when it was computed.
// Entries are invalidated lazily on read.
type pairCache struct {
	pairs     []string
	count     int
	fetchedAt time.Time
	ttl       time.Duration
}

// get returns the cached pairs if they were computed for count and are
// younger than the TTL.
func (c *pairCache) get(count int, now time.Time) ([]string, bool) {
	if c.pairs == nil || c.count != count {
		return nil, false
	}
	if now.Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return append([]string(nil), c.pairs...), true
}

func (c *pairCache) put(count int, pairs []string, now time.Time) {
	c.pairs = append([]string{}, pairs...)
	c.count = count
	c.fetchedAt = now
}
