package guard

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiter_CapacityAndRefill(t *testing.T) {
	clock := newFakeClock()
	l := NewRateLimiter(2, time.Minute, clock.Now)

	ok, _ := l.TryConsume("agent-a")
	assert.True(t, ok)
	ok, _ = l.TryConsume("agent-a")
	assert.True(t, ok)

	clock.Advance(20 * time.Second)
	ok, retry := l.TryConsume("agent-a")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, retry)
	assert.Zero(t, l.Remaining("agent-a"))

	clock.Advance(40 * time.Second)
	ok, _ = l.TryConsume("agent-a")
	assert.True(t, ok)
	assert.Equal(t, 1, l.Remaining("agent-a"))
}

func TestRateLimiter_AgentsAreIsolated(t *testing.T) {
	l := NewRateLimiter(1, time.Hour, newFakeClock().Now)

	ok, _ := l.TryConsume("a")
	require.True(t, ok)
	ok, _ = l.TryConsume("a")
	assert.False(t, ok)

	ok, _ = l.TryConsume("b")
	assert.True(t, ok)
}

func TestRateLimiter_DisabledAtZeroCapacity(t *testing.T) {
	l := NewRateLimiter(0, time.Second, nil)
	for range 100 {
		ok, _ := l.TryConsume("a")
		require.True(t, ok)
	}
}

func TestRateLimiter_ConcurrentConsumersNeverOverdraw(t *testing.T) {
	l := NewRateLimiter(10, time.Hour, newFakeClock().Now)
	var mu sync.Mutex
	admitted := 0

	var g errgroup.Group
	for range 50 {
		g.Go(func() error {
			if ok, _ := l.TryConsume("a"); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 10, admitted)
}

func TestIdempotencyStore_NamespacedAndExpiring(t *testing.T) {
	clock := newFakeClock()
	s := NewIdempotencyStore(time.Minute, clock.Now)

	s.Store("a", "k1", "node-1")
	got, ok := s.Lookup("a", "k1")
	require.True(t, ok)
	assert.Equal(t, "node-1", got)

	_, ok = s.Lookup("b", "k1")
	assert.False(t, ok, "keys are per agent")

	clock.Advance(59 * time.Second)
	_, ok = s.Lookup("a", "k1")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = s.Lookup("a", "k1")
	assert.False(t, ok, "expired at exactly insertion + TTL")
}

func TestIdempotencyStore_SweepsOnStore(t *testing.T) {
	clock := newFakeClock()
	s := NewIdempotencyStore(time.Second, clock.Now)
	s.Store("a", "k1", 1)
	s.Store("a", "k2", 2)
	clock.Advance(2 * time.Second)

	s.Store("a", "k3", 3)
	assert.Equal(t, 1, s.Len())

	s.Store("a", "", 4)
	_, ok := s.Lookup("a", "")
	assert.False(t, ok)
}

func TestIdempotencyStore_SweepsOncePerTTL(t *testing.T) {
	clock := newFakeClock()
	s := NewIdempotencyStore(time.Minute, clock.Now)

	s.Store("a", "k1", 1)
	clock.Advance(30 * time.Second)
	s.Store("a", "k2", 2)
	assert.Equal(t, 2, s.Len())

	clock.Advance(40 * time.Second)
	s.Store("a", "k3", 3)
	assert.Equal(t, 2, s.Len(), "k1 swept")

	clock.Advance(25 * time.Second)
	s.Store("a", "k4", 4)
	assert.Equal(t, 3, s.Len(), "k2 expired but the sweep waits a full TTL")

	_, ok := s.Lookup("a", "k2")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestVersionProvider_CheckAndBump(t *testing.T) {
	p := NewVersionProvider()

	v, ok := p.TryCheckAndBump("scope", nil)
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	stale := int64(0)
	v, ok = p.TryCheckAndBump("scope", &stale)
	assert.False(t, ok)
	assert.Equal(t, int64(1), v)

	current := int64(1)
	v, ok = p.TryCheckAndBump("scope", &current)
	require.True(t, ok)
	assert.Equal(t, int64(2), v)

	assert.Equal(t, int64(0), p.Current("other"))
}

func TestVersionProvider_ConcurrentBumpsAreNotLost(t *testing.T) {
	p := NewVersionProvider()

	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			if _, ok := p.TryCheckAndBump("scope", nil); !ok {
				return fmt.Errorf("bump %d rejected", i)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(16), p.Current("scope"))
}
