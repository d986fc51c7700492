// ABOUTME: Tests for the dedupe cache used to drop client message retries
// ABOUTME: Validates TTL expiration, size limits, forgetting, sweeping and concurrency safety

package dedupe

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestCache returns a cache driven by a manual clock.
func newTestCache(t *testing.T, ttl time.Duration, maxSize int) (*Cache, *time.Time) {
	t.Helper()

	c := New(ttl, maxSize)
	t.Cleanup(c.Close)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestKey(t *testing.T) {
	assert.Equal(t, "7:42:abc", Key(7, 42, "abc"))
	assert.NotEqual(t, Key(7, 42, "abc"), Key(8, 42, "abc"))
	assert.NotEqual(t, Key(7, 42, "abc"), Key(7, 43, "abc"))
}

func TestCache_CheckAndMark(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 100)

	assert.False(t, c.seen("k"))
	assert.False(t, c.CheckAndMark("k"), "first sighting is not a duplicate")
	assert.True(t, c.seen("k"))
	assert.True(t, c.CheckAndMark("k"), "second sighting is a duplicate")
	assert.Equal(t, 1, c.Len())
}

func TestCache_Expiry(t *testing.T) {
	c, now := newTestCache(t, time.Minute, 100)

	c.CheckAndMark("k")
	*now = now.Add(59 * time.Second)
	assert.True(t, c.seen("k"))

	*now = now.Add(time.Second)
	assert.False(t, c.seen("k"))
	assert.False(t, c.CheckAndMark("k"), "expired key is accepted again")
	assert.Equal(t, 1, c.Len())
}

func TestCache_EvictsOldest(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 3)

	for i := 0; i < 4; i++ {
		c.CheckAndMark(strconv.Itoa(i))
	}

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.seen("0"), "oldest key evicted")
	for i := 1; i < 4; i++ {
		assert.True(t, c.seen(strconv.Itoa(i)))
	}
}

func TestCache_Forget(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 10)

	c.CheckAndMark("k")
	c.Forget("k")
	c.Forget("never-marked")

	assert.False(t, c.CheckAndMark("k"), "forgotten key is accepted again")
}

func TestCache_Sweep(t *testing.T) {
	c, now := newTestCache(t, time.Minute, 10)

	c.CheckAndMark("old-1")
	c.CheckAndMark("old-2")
	*now = now.Add(45 * time.Second)
	c.CheckAndMark("fresh")
	*now = now.Add(30 * time.Second)

	c.sweep()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.seen("fresh"))
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	assert.NotPanics(t, c.Close)
}

func TestCache_ConcurrentCheckAndMark(t *testing.T) {
	c := New(time.Minute, 1000)
	defer c.Close()

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.CheckAndMark("same-key") {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}
