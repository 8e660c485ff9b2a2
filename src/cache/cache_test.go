package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dansever/fleet-ai-sub002/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// testClock is an adjustable time source for TTL tests.
type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time          { return c.current }
func (c *testClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestCache() (*Cache, *testClock) {
	clock := &testClock{current: time.Unix(1700000000, 0)}
	return New(nil, "test_", WithClock(clock.now)), clock
}

func TestSetAndGetWithinTTL(t *testing.T) {
	c, _ := newTestCache()
	defer c.Close()

	require.NoError(t, c.Set("rate_USD/GAL_USD/L", 0.2641720524))

	var rate float64
	found := c.GetJSON("rate_USD/GAL_USD/L", time.Minute, &rate)
	require.True(t, found)
	assert.Equal(t, 0.2641720524, rate)
}

func TestGetEvictsStaleEntriesLazily(t *testing.T) {
	c, clock := newTestCache()
	defer c.Close()

	require.NoError(t, c.Set("k", "v"))

	clock.advance(2 * time.Minute)

	_, found := c.Get("k", time.Minute)
	assert.False(t, found, "stale entry must read as absent")

	// The stale read evicted the entry; a generous TTL cannot revive it.
	_, found = c.Get("k", 24*time.Hour)
	assert.False(t, found, "lazily evicted entry must stay gone")
}

func TestGetWithZeroTTL(t *testing.T) {
	c, clock := newTestCache()
	defer c.Close()

	require.NoError(t, c.Set("k", 1))

	clock.advance(time.Millisecond)
	_, found := c.Get("k", 0)
	assert.False(t, found)
}

func TestGetWithLargeTTLReturnsValueUnchanged(t *testing.T) {
	c, clock := newTestCache()
	defer c.Close()

	payload := map[string]any{"value": 42.5, "unit": "l"}
	require.NoError(t, c.Set("k", payload))

	clock.advance(time.Hour)

	var got map[string]any
	require.True(t, c.GetJSON("k", 48*time.Hour, &got))
	assert.Equal(t, 42.5, got["value"])
	assert.Equal(t, "l", got["unit"])
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache()
	defer c.Close()

	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("b", 2))

	c.Delete("a")
	_, found := c.Get("a", time.Minute)
	assert.False(t, found)
	_, found = c.Get("b", time.Minute)
	assert.True(t, found)

	c.Clear()
	_, found = c.Get("b", time.Minute)
	assert.False(t, found)
}

func TestClearExpiredSweepsOnlyStaleEntries(t *testing.T) {
	c, clock := newTestCache()
	defer c.Close()

	require.NoError(t, c.Set("old", 1))
	clock.advance(10 * time.Minute)
	require.NoError(t, c.Set("fresh", 2))

	c.ClearExpired(5 * time.Minute)

	_, found := c.Get("old", time.Hour)
	assert.False(t, found)
	_, found = c.Get("fresh", time.Hour)
	assert.True(t, found)
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	c, _ := newTestCache()
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = c.Set("shared", i)
		}
	}()
	for i := 0; i < 200; i++ {
		var v int
		if c.GetJSON("shared", time.Minute, &v) {
			assert.GreaterOrEqual(t, v, 0)
		}
	}
	<-done
}
