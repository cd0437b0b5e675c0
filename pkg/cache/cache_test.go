package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reschivon/autoforge/pkg/forge"
)

func TestLRU_Eviction(t *testing.T) {
	c := newLRU(3, 0)

	c.put("a", []byte("value_a"))
	c.put("b", []byte("value_b"))
	c.put("c", []byte("value_c"))

	// Access 'a' to make it most recently used
	c.get("a")

	// Add new item - should evict 'b' (least recently used)
	c.put("d", []byte("value_d"))

	assert.Equal(t, 3, c.order.Len())

	_, found := c.get("b")
	assert.False(t, found, "b should have been evicted")

	for _, k := range []string{"a", "c", "d"} {
		_, found = c.get(k)
		assert.True(t, found, "%s should still be present", k)
	}
}

func TestLRU_ByteLimit(t *testing.T) {
	c := newLRU(0, 25)

	c.put("a", []byte("1234567890"))
	c.put("b", []byte("1234567890"))
	assert.Equal(t, int64(20), c.bytes)

	c.put("c", []byte("1234567890"))
	assert.Equal(t, 2, c.order.Len())
	assert.Equal(t, int64(20), c.bytes)
	_, found := c.get("a")
	assert.False(t, found)

	c.put("big", bytes.Repeat([]byte("x"), 100))
	assert.Equal(t, 1, c.order.Len(), "the newest entry stays even when too large")
	assert.Equal(t, int64(100), c.bytes)
}

func TestLRU_UpdateAndRemove(t *testing.T) {
	c := newLRU(10, 0)

	c.put("a", []byte("v1"))
	c.put("a", []byte("value2"))
	data, found := c.get("a")
	require.True(t, found)
	assert.Equal(t, "value2", string(data))
	assert.Equal(t, int64(6), c.bytes)

	c.remove("a")
	c.remove("missing")
	assert.Equal(t, 0, c.order.Len())
	assert.Equal(t, int64(0), c.bytes)
}

func TestLRU_SaveLoadKeepsOrder(t *testing.T) {
	c := newLRU(10, 0)
	c.put("old", []byte("1"))
	c.put("mid", []byte("2"))
	c.put("new", []byte("3"))
	c.get("old")

	var buf bytes.Buffer
	require.NoError(t, c.save(&buf))

	// A smaller limit keeps the two most recently used.
	c2 := newLRU(2, 0)
	require.NoError(t, c2.load(&buf))
	assert.Equal(t, 2, c2.order.Len())

	_, found := c2.get("mid")
	assert.False(t, found)
	data, found := c2.get("old")
	require.True(t, found)
	assert.Equal(t, "1", string(data))
}

func TestLRU_LoadMissingFile(t *testing.T) {
	c := newLRU(10, 0)
	require.NoError(t, c.loadFile(filepath.Join(t.TempDir(), "nonexistent.cache")))
	assert.Equal(t, 0, c.order.Len())
}

func TestKey(t *testing.T) {
	a := Key([]byte("def f(): pass\n"), []byte("seed=1"))
	assert.NotEmpty(t, a)
	assert.Equal(t, a, Key([]byte("def f(): pass\n"), []byte("seed=1")))
	assert.NotEqual(t, a, Key([]byte("def f(): pass\n"), []byte("seed=2")))
	assert.NotEqual(t, Key([]byte("ab"), []byte("c")), Key([]byte("a"), []byte("bc")), "parts are delimited")
}

func result(source string, fns ...string) *forge.Result {
	res := &forge.Result{Source: source}
	for i, name := range fns {
		res.Functions = append(res.Functions, forge.FunctionResult{Name: name, Line: i + 1, Mutated: true})
	}
	return res
}

func TestResultCache_StoreLookup(t *testing.T) {
	rc, err := OpenResults("", 4)
	require.NoError(t, err)

	want := result("def f():\n    pass\n", "f")
	require.NoError(t, rc.Store("k", want))

	got, err := rc.Lookup("k")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = rc.Lookup("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	st := rc.Stats()
	assert.Equal(t, 1, st.Length)
	assert.Positive(t, st.Bytes)
	assert.Equal(t, int64(1), st.HitCount)
	assert.Equal(t, int64(1), st.MissCount)

	require.NoError(t, rc.Flush(), "in-memory cache flushes nothing")
}

func TestResultCache_Persistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")

	rc, err := OpenResults(dir, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, rc.Len())

	require.NoError(t, rc.Store("k1", result("one")))
	require.NoError(t, rc.Store("k2", result("two", "f", "g")))
	require.NoError(t, rc.Flush())

	reopened, err := OpenResults(dir, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())

	got, err := reopened.Lookup("k2")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Source)
	assert.Len(t, got.Functions, 2)
}

func TestResultCache_Eviction(t *testing.T) {
	rc, err := OpenResults("", 2)
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, rc.Store(k, result(k)))
	}
	assert.Equal(t, 2, rc.Len())

	_, err = rc.Lookup("a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestResultCache_DropsUndecodableEntry(t *testing.T) {
	rc, err := OpenResults("", 4)
	require.NoError(t, err)
	rc.lru.put("bad", []byte{0xc1})

	_, err = rc.Lookup("bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, 0, rc.Len())
}

func TestOpenResults_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, resultsFile), []byte("not msgpack"), 0644))

	_, err := OpenResults(dir, 4)
	assert.Error(t, err)
}
