package gateway

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry[Response any] struct {
	payload   Response
	timestamp time.Time
	ttl       time.Duration
}

func (e cacheEntry[Response]) expired(now time.Time) bool {
	return now.Sub(e.timestamp) >= e.ttl
}

// responseCache bounds the cached responses to maxSize. Lookups use Peek so the eviction order is
// the insertion order. It is not safe for concurrent use, the gateway guards it.
type responseCache[Response any] struct {
	entries *lru.Cache[string, cacheEntry[Response]]
	maxSize int
}

func newResponseCache[Response any](maxSize int) *responseCache[Response] {
	if maxSize <= 0 {
		maxSize = 1
	}

	entries, err := lru.New[string, cacheEntry[Response]](maxSize)
	if err != nil {
		// lru.New only rejects a non positive size.
		panic(err)
	}

	return &responseCache[Response]{
		entries: entries,
		maxSize: maxSize,
	}
}

func (c *responseCache[Response]) get(key string, now time.Time) (Response, bool) {
	var zero Response

	entry, ok := c.entries.Peek(key)
	if !ok {
		return zero, false
	}

	if entry.expired(now) {
		c.entries.Remove(key)

		return zero, false
	}

	return entry.payload, true
}

func (c *responseCache[Response]) set(key string, payload Response, now time.Time, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	if !c.entries.Contains(key) && c.entries.Len() >= c.maxSize {
		c.purgeExpired(now)
	}

	c.entries.Add(key, cacheEntry[Response]{payload: payload, timestamp: now, ttl: ttl})
}

// purgeExpired drops expired entries so a full cache evicts live entries only when it must.
func (c *responseCache[Response]) purgeExpired(now time.Time) {
	for _, key := range c.entries.Keys() {
		if entry, ok := c.entries.Peek(key); ok && entry.expired(now) {
			c.entries.Remove(key)
		}
	}
}

func (c *responseCache[Response]) clear() {
	c.entries.Purge()
}

func (c *responseCache[Response]) len() int {
	return c.entries.Len()
}
