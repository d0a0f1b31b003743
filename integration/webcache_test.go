package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWebCachePutThenGetHit(t *testing.T) {
	c := NewWebCache(time.Minute)
	c.Put("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestWebCacheZeroTTLDisablesCaching(t *testing.T) {
	c := NewWebCache(0)
	c.Put("k", "v")
	_, ok := c.Get("k")
	require.False(t, ok)
}

func TestWebCacheExpiredEntryIsLazilyRemoved(t *testing.T) {
	c := NewWebCache(time.Millisecond)
	c.Put("k", "v")
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	require.False(t, ok)
	require.Len(t, c.entries, 0)
}

func TestWebCacheEvictExpiredSweepsStaleEntries(t *testing.T) {
	c := NewWebCache(time.Millisecond)
	c.Put("a", "1")
	c.Put("b", "2")
	time.Sleep(5 * time.Millisecond)
	c.EvictExpired()
	require.Len(t, c.entries, 0)
}
