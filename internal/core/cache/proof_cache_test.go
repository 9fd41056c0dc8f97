package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/umbra-protocol/prover/internal/config"
	logimpl "github.com/umbra-protocol/prover/internal/core/infrastructure/log"
)

func newTestCache(t *testing.T, ttl time.Duration) *ProofCache {
	t.Helper()
	c, err := New(logimpl.NewNop(), config.CacheOptions{
		TTL:          ttl,
		MaxSizeMB:    1,
		CleanWindow:  time.Minute,
		MaxEntrySize: 1024,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestProofCache_SetGet(t *testing.T) {
	c := newTestCache(t, time.Hour)

	_, ok := c.Get("missing")
	require.False(t, ok)

	require.NoError(t, c.Set("key1", []byte("proof-data")))
	data, ok := c.Get("key1")
	require.True(t, ok)
	require.Equal(t, []byte("proof-data"), data)
}

func TestProofCache_Overwrite(t *testing.T) {
	c := newTestCache(t, time.Hour)

	require.NoError(t, c.Set("key1", []byte("v1")))
	require.NoError(t, c.Set("key1", []byte("v2")))

	data, ok := c.Get("key1")
	require.True(t, ok)
	require.Equal(t, []byte("v2"), data)
}

func TestProofCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t, time.Second)

	require.NoError(t, c.Set("key1", []byte("short-lived")))
	_, ok := c.Get("key1")
	require.True(t, ok)

	time.Sleep(1500 * time.Millisecond)
	_, ok = c.Get("key1")
	require.False(t, ok)
}

func TestProofCache_Stats(t *testing.T) {
	c := newTestCache(t, time.Hour)

	require.NoError(t, c.Set("a", []byte("1")))
	require.NoError(t, c.Set("b", []byte("2")))

	c.Get("a")       // hit
	c.Get("a")       // hit
	c.Get("missing") // miss

	stats := c.Stats()
	require.Equal(t, 2, stats.Entries)
	require.Equal(t, uint64(2), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, int64(3600), stats.TTLSeconds)
}

func TestProofCache_ManyEntries(t *testing.T) {
	c := newTestCache(t, time.Hour)

	for i := 0; i < 500; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("key-%d", i), []byte("payload")))
	}
	// 容量内不应有条目丢失
	require.Equal(t, 500, c.Stats().Entries)
}
