package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExpiresAfterTTL(t *testing.T) {
	c, err := NewCache[string](8, time.Minute)
	require.NoError(t, err)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	c.Set("cs_1", "complete")
	v, ok := c.Get("cs_1")
	assert.True(t, ok)
	assert.Equal(t, "complete", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("cs_1")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entries are dropped on read")
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewCache[int](2, time.Hour)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestNewCacheRejectsNonPositiveSize(t *testing.T) {
	_, err := NewCache[int](0, time.Minute)
	assert.Error(t, err)
}
