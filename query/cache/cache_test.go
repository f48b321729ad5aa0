package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestLRU_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU[string](4, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Size)
}

func TestLRU_GetOrCreate(t *testing.T) {
	c := NewLRU[string](4, 0)
	calls := 0
	create := func() (string, error) {
		calls++
		return "built", nil
	}

	for range 3 {
		v, err := c.GetOrCreate("q", create)
		require.NoError(t, err)
		assert.Equal(t, "built", v)
	}
	assert.Equal(t, 1, calls)

	_, err := c.GetOrCreate("bad", func() (string, error) { return "", errors.New("boom") })
	assert.EqualError(t, err, "boom")
	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestLRU_Invalidate(t *testing.T) {
	c := NewLRU[int](8, 0)
	c.Set("named:a", 1)
	c.Set("named:b", 2)
	c.Set("positional:a", 3)

	c.Invalidate("named:a")
	c.InvalidatePrefix("named:")
	assert.Equal(t, 1, c.Stats().Size)

	c.Clear()
	assert.Equal(t, Stats{MaxSize: 8}, c.Stats())
}
