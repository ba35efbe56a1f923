package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, size int, ttl time.Duration) (*Cache[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c, err := New[string](size, ttl, WithClock(clock.Now))
	require.NoError(t, err)
	return c, clock
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New[int](0, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = New[int](10, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestCache_EvictsOldestInsert(t *testing.T) {
	c, _ := newTestCache(t, 3, time.Hour)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")
	c.Set("d", "4")

	assert.False(t, c.Has("a"))
	for _, k := range []string{"b", "c", "d"} {
		assert.True(t, c.Has(k), "expected %s to remain", k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCache_LRUEviction(t *testing.T) {
	c, _ := newTestCache(t, 3, time.Hour)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")

	_, ok := c.Get("a") // promote a
	require.True(t, ok)

	c.Set("d", "4") // evicts b

	assert.False(t, c.Has("b"))
	assert.True(t, c.Has("a"))
	assert.True(t, c.Has("c"))
	assert.True(t, c.Has("d"))
	assert.Equal(t, 3, c.Len())
}

func TestCache_TTLExpiry(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)

	c.Set("k", "v")
	clock.Advance(59 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire at exactly ttl")
	assert.Equal(t, 0, c.Len(), "expired entry should be removed on access")
}

func TestCache_ExpiryIgnoresRecency(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("k", "v")

	for i := 0; i < 5; i++ {
		clock.Advance(15 * time.Second)
		c.Get("k")
	}
	assert.False(t, c.Has("k"))
}

func TestCache_SetRefreshesTTL(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("k", "old")
	clock.Advance(50 * time.Second)
	c.Set("k", "new")
	clock.Advance(50 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_Prune(t *testing.T) {
	c, clock := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clock.Advance(30 * time.Second)
	c.Set("c", "3")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 2, c.Prune())
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has("c"))
	assert.Equal(t, 0, c.Prune())
}

func TestCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(t, 10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Has("b"))

	c.Set("c", "3")
	assert.True(t, c.Has("c"), "cache should be usable after Clear")
}

func TestCache_Concurrent(t *testing.T) {
	c, err := New[int](50, time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%80)
				c.Set(key, i)
				c.Get(key)
				if i%50 == 0 {
					c.Prune()
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
