// Package cache keeps mutation results between runs. Results are stored
// msgpack encoded in an LRU bounded by entry count and total bytes, and the
// whole cache is persisted to a single file.
package cache

import (
	"container/list"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrKeyNotFound is returned when a key is not found in the cache.
var ErrKeyNotFound = errors.New("key not found")

// entry is one cached result in its encoded form.
type entry struct {
	Key  string `msgpack:"key"`
	Data []byte `msgpack:"data"`
}

// lru holds encoded results, most recently used at the front. It is not
// safe for concurrent use.
type lru struct {
	maxEntries int   // 0 means unlimited
	maxBytes   int64 // 0 means unlimited
	bytes      int64
	order      *list.List // of *entry
	items      map[string]*list.Element
}

func newLRU(maxEntries int, maxBytes int64) *lru {
	return &lru{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		order:      list.New(),
		items:      make(map[string]*list.Element),
	}
}

func (c *lru) get(key string) ([]byte, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).Data, true
}

func (c *lru) put(key string, data []byte) {
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		c.bytes += int64(len(data) - len(e.Data))
		e.Data = data
		c.order.MoveToFront(el)
	} else {
		c.items[key] = c.order.PushFront(&entry{Key: key, Data: data})
		c.bytes += int64(len(data))
	}
	c.evict()
}

func (c *lru) remove(key string) {
	if el, ok := c.items[key]; ok {
		c.drop(el)
	}
}

func (c *lru) drop(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.items, e.Key)
	c.bytes -= int64(len(e.Data))
}

// evict drops least recently used entries until both limits hold. The
// newest entry always stays, even when it alone exceeds maxBytes.
func (c *lru) evict() {
	for c.order.Len() > 1 {
		over := (c.maxEntries > 0 && c.order.Len() > c.maxEntries) ||
			(c.maxBytes > 0 && c.bytes > c.maxBytes)
		if !over {
			return
		}
		c.drop(c.order.Back())
	}
}

// save writes the entries least recently used first, so that load
// restores the same order.
func (c *lru) save(w io.Writer) error {
	entries := make([]*entry, 0, c.order.Len())
	for el := c.order.Back(); el != nil; el = el.Prev() {
		entries = append(entries, el.Value.(*entry))
	}
	return msgpack.NewEncoder(w).Encode(entries)
}

// load replaces the contents with the entries read from r, applying the
// limits as they are inserted.
func (c *lru) load(r io.Reader) error {
	var entries []*entry
	if err := msgpack.NewDecoder(r).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}

	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.bytes = 0
	for _, e := range entries {
		c.put(e.Key, e.Data)
	}
	return nil
}

// saveFile writes the cache to path.
func (c *lru) saveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	if err := c.save(f); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return f.Close()
}

// loadFile loads the cache from path. A missing file leaves it empty.
func (c *lru) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.load(f)
}
