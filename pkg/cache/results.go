package cache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"

	"github.com/reschivon/autoforge/pkg/forge"
)

const (
	// resultsFile is the name of the persisted result cache inside its directory.
	resultsFile = "results.msgpack"

	// MaxBytes bounds the encoded size of all cached results.
	MaxBytes = 64 << 20
)

// Key hashes the parts identifying one mutation run: the source and every
// setting that changes the output.
func Key(parts ...[]byte) string {
	h := xxh3.New()
	for _, p := range parts {
		_, _ = h.Write(p)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Stats describes the result cache.
type Stats struct {
	Length    int   `json:"length"`
	Bytes     int64 `json:"bytes"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
}

// ResultCache maps cache keys to mutation results. It is safe for
// concurrent use.
type ResultCache struct {
	mu     sync.Mutex
	lru    *lru
	path   string
	dirty  bool
	hits   int64
	misses int64
}

// OpenResults loads the result cache stored in dir, keeping at most size
// entries. A missing file gives an empty cache. An empty dir keeps the cache
// in memory only.
func OpenResults(dir string, size int) (*ResultCache, error) {
	rc := &ResultCache{lru: newLRU(size, MaxBytes)}
	if dir == "" {
		return rc, nil
	}

	rc.path = filepath.Join(dir, resultsFile)
	if err := rc.lru.loadFile(rc.path); err != nil {
		return nil, fmt.Errorf("loading result cache: %w", err)
	}
	return rc, nil
}

// Lookup returns the result stored under key, or ErrKeyNotFound. An entry
// that no longer decodes is dropped.
func (c *ResultCache) Lookup(key string) (*forge.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.lru.get(key)
	if !ok {
		c.misses++
		return nil, ErrKeyNotFound
	}

	var res forge.Result
	if err := msgpack.Unmarshal(data, &res); err != nil {
		c.lru.remove(key)
		c.dirty = true
		c.misses++
		return nil, fmt.Errorf("decoding cached result %s: %w", key, err)
	}
	c.hits++
	return &res, nil
}

// Store records res under key.
func (c *ResultCache) Store(key string, res *forge.Result) error {
	data, err := msgpack.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.put(key, data)
	c.dirty = true
	return nil
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.order.Len()
}

// Stats returns the current cache statistics.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:    c.lru.order.Len(),
		Bytes:     c.lru.bytes,
		HitCount:  c.hits,
		MissCount: c.misses,
	}
}

// Flush writes the cache to its directory if anything changed.
func (c *ResultCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" || !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := c.lru.saveFile(c.path); err != nil {
		return err
	}
	c.dirty = false
	return nil
}
