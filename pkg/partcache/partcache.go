// Package partcache provides a bounded, read-through cache for entity
// part bytes, keyed by (entity_id, part_number). It exists to avoid
// rereading a whole part file from the storage adapter on every
// ReadStream.Next call when the same object is read repeatedly — the
// spec's component table (§2) allots the storage adapter only a
// read-fully contract, with no caching requirement of its own, so the
// engine layers this in front of it.
//
// Grounded on the teacher's pkg/cache block-buffer layer in spirit
// (bounded memory, keyed by coordinates into a content-addressed store),
// but backed by dgraph-io/ristretto/v2 rather than a hand-rolled
// LRU/bitmap structure: ristretto is already part of the example pack's
// dependency surface (pulled in transitively through the teacher's
// badger-backed metadata store) and its TinyLFU admission policy is a
// better fit for an unbounded key space like entity/part pairs than the
// teacher's fixed 4 MB block-buffer scheme, which is purpose-built for
// its own sparse-file chunk model.
package partcache

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// Key identifies a cached part.
type Key struct {
	EntityID   string
	PartNumber int
}

func (k Key) cacheKey() string {
	return fmt.Sprintf("%s/%d", k.EntityID, k.PartNumber)
}

// Cache is a bounded read-through cache of part bytes.
type Cache struct {
	rc *ristretto.Cache[string, []byte]
}

// Config configures a Cache's resource bounds.
type Config struct {
	// MaxCost is the maximum total bytes ristretto will hold.
	MaxCost int64
	// NumCounters sizes ristretto's internal admission sketch; ristretto
	// recommends roughly 10x the expected number of distinct keys.
	NumCounters int64
}

// DefaultConfig returns sane bounds for a single-engine in-process cache:
// 64 MiB of part bytes, sized for ~100k distinct (entity, part) keys.
func DefaultConfig() Config {
	return Config{MaxCost: 64 << 20, NumCounters: 1_000_000}
}

// New creates a Cache. Passing a zero Config uses DefaultConfig.
func New(cfg Config) (*Cache, error) {
	if cfg.MaxCost <= 0 {
		cfg = DefaultConfig()
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{rc: rc}, nil
}

// Get returns the cached bytes for key, if present.
func (c *Cache) Get(key Key) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	return c.rc.Get(key.cacheKey())
}

// Set stores data for key, costed by its length. It returns whether
// ristretto admitted the item; callers never need to treat rejection as
// an error, since this cache is read-through (a cache miss just falls
// back to the storage adapter).
func (c *Cache) Set(key Key, data []byte) bool {
	if c == nil {
		return false
	}
	return c.rc.Set(key.cacheKey(), data, int64(len(data)))
}

// Del evicts key, used when an entity is superseded or deleted so stale
// part bytes never outlive their owning catalog row.
func (c *Cache) Del(key Key) {
	if c == nil {
		return
	}
	c.rc.Del(key.cacheKey())
}

// DelEntity evicts parts 1 through numParts of entityID. Ristretto has
// no prefix-delete primitive, so the caller supplies the part count and
// this helper calls Del once per part number.
func (c *Cache) DelEntity(entityID string, numParts int) {
	if c == nil {
		return
	}
	for p := 1; p <= numParts; p++ {
		c.rc.Del(Key{EntityID: entityID, PartNumber: p}.cacheKey())
	}
}

// Close releases ristretto's background goroutines.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.rc.Close()
}

// Wait blocks until all pending Set calls have been processed by
// ristretto's internal buffers — useful in tests that assert on Get
// immediately after Set.
func (c *Cache) Wait() {
	if c == nil {
		return
	}
	c.rc.Wait()
}
