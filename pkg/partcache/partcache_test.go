package partcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tai-kun/omnio-sub001/pkg/partcache"
)

func TestSetThenGetRoundTrip(t *testing.T) {
	c, err := partcache.New(partcache.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	key := partcache.Key{EntityID: "e1", PartNumber: 1}
	c.Set(key, []byte("payload"))
	c.Wait()

	data, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))
}

func TestGetMissReturnsFalse(t *testing.T) {
	c, err := partcache.New(partcache.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get(partcache.Key{EntityID: "missing", PartNumber: 1})
	assert.False(t, ok)
}

func TestDelEntityEvictsAllParts(t *testing.T) {
	c, err := partcache.New(partcache.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()

	c.Set(partcache.Key{EntityID: "e1", PartNumber: 1}, []byte("a"))
	c.Set(partcache.Key{EntityID: "e1", PartNumber: 2}, []byte("b"))
	c.Wait()

	c.DelEntity("e1", 2)

	_, ok1 := c.Get(partcache.Key{EntityID: "e1", PartNumber: 1})
	_, ok2 := c.Get(partcache.Key{EntityID: "e1", PartNumber: 2})
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *partcache.Cache
	assert.NotPanics(t, func() {
		c.Set(partcache.Key{EntityID: "e1", PartNumber: 1}, []byte("x"))
		_, ok := c.Get(partcache.Key{EntityID: "e1", PartNumber: 1})
		assert.False(t, ok)
		c.Del(partcache.Key{EntityID: "e1", PartNumber: 1})
		c.DelEntity("e1", 1)
		c.Wait()
		c.Close()
	})
}
