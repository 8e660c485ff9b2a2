// Package cache implements the conversion result cache: an in-memory
// tier on go-cache with an optional sqlite-backed persistent tier.
// TTLs are supplied by the reader, so one cache instance can serve both
// short-lived exchange-rate entries and long-lived run results.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dansever/fleet-ai-sub002/src/logger"
)

// Entry is the stored envelope. Timestamp is epoch milliseconds; an
// entry older than the reader-supplied TTL is treated as absent and
// evicted lazily.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Cache is a two-tier TTL cache. Reads prefer the memory tier; the
// persistent tier is only read once, at construction, to rehydrate
// memory. Safe for concurrent use by interleaved conversion runs.
type Cache struct {
	mem    *gocache.Cache
	db     *sql.DB // nil disables the persistent tier
	prefix string
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for tests that advance time.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache instance. db may be nil, in which case only the
// in-memory tier is used. Persistent keys are namespaced with prefix.
func New(db *sql.DB, prefix string, opts ...Option) *Cache {
	c := &Cache{
		mem:    gocache.New(gocache.NoExpiration, 0),
		db:     db,
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rehydrate()
	return c
}

// Get returns the entry data for key if it exists and is younger than
// ttl. Stale entries are evicted from both tiers on read.
func (c *Cache) Get(key string, ttl time.Duration) (json.RawMessage, bool) {
	raw, found := c.mem.Get(key)
	if !found {
		return nil, false
	}
	entry, ok := raw.(Entry)
	if !ok {
		c.Delete(key)
		return nil, false
	}
	age := c.now().UnixMilli() - entry.Timestamp
	if age > ttl.Milliseconds() {
		c.Delete(key)
		return nil, false
	}
	return entry.Data, true
}

// GetJSON unmarshals the cached data for key into dest.
func (c *Cache) GetJSON(key string, ttl time.Duration, dest any) bool {
	data, found := c.Get(key, ttl)
	if !found {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		logger.L.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		c.Delete(key)
		return false
	}
	return true
}

// Set stores data under key in both tiers. data must be JSON-serializable.
func (c *Cache) Set(key string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	entry := Entry{Data: payload, Timestamp: c.now().UnixMilli()}
	c.mem.Set(key, entry, gocache.NoExpiration)

	if c.db != nil {
		_, err := c.db.Exec(`
			INSERT INTO cache_entries (key, data, timestamp)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				data = excluded.data,
				timestamp = excluded.timestamp;
		`, c.prefix+key, string(payload), entry.Timestamp)
		if err != nil {
			// The memory tier already holds the entry; losing the
			// persistent copy only costs a recomputation after restart.
			logger.L.Warn("Failed to persist cache entry", "key", key, "error", err)
		}
	}
	return nil
}

// Delete removes key from both tiers.
func (c *Cache) Delete(key string) {
	c.mem.Delete(key)
	if c.db != nil {
		if _, err := c.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, c.prefix+key); err != nil {
			logger.L.Warn("Failed to delete persisted cache entry", "key", key, "error", err)
		}
	}
}

// Clear removes every entry from both tiers.
func (c *Cache) Clear() {
	c.mem.Flush()
	if c.db != nil {
		if _, err := c.db.Exec(`DELETE FROM cache_entries WHERE key LIKE ?`, c.prefix+"%"); err != nil {
			logger.L.Warn("Failed to clear persisted cache entries", "error", err)
		}
	}
}

// ClearExpired removes entries older than maxAge from both tiers. Reads
// already evict lazily; this is an opportunistic sweep.
func (c *Cache) ClearExpired(maxAge time.Duration) {
	cutoff := c.now().UnixMilli() - maxAge.Milliseconds()
	for key, item := range c.mem.Items() {
		if entry, ok := item.Object.(Entry); ok && entry.Timestamp < cutoff {
			c.mem.Delete(key)
		}
	}
	if c.db != nil {
		if _, err := c.db.Exec(`DELETE FROM cache_entries WHERE key LIKE ? AND timestamp < ?`, c.prefix+"%", cutoff); err != nil {
			logger.L.Warn("Failed to sweep persisted cache entries", "error", err)
		}
	}
}

// Close releases the memory tier. The sql.DB is owned by the caller and
// is not closed here.
func (c *Cache) Close() {
	c.mem.Flush()
}

// rehydrate loads the persistent tier into memory, once at construction.
func (c *Cache) rehydrate() {
	if c.db == nil {
		return
	}
	rows, err := c.db.Query(`SELECT key, data, timestamp FROM cache_entries WHERE key LIKE ?`, c.prefix+"%")
	if err != nil {
		logger.L.Warn("Failed to rehydrate cache from persistent tier", "error", err)
		return
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var key, data string
		var timestamp int64
		if err := rows.Scan(&key, &data, &timestamp); err != nil {
			logger.L.Warn("Skipping unreadable cache row", "error", err)
			continue
		}
		memKey := key[len(c.prefix):]
		c.mem.Set(memKey, Entry{Data: json.RawMessage(data), Timestamp: timestamp}, gocache.NoExpiration)
		loaded++
	}
	if loaded > 0 {
		logger.L.Info("Cache rehydrated from persistent tier", "entries", loaded)
	}
}
