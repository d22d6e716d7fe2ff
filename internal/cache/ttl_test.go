package cache

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(clock *fakeClock) *TTL[string] {
	return NewWithClock[string](time.Minute, clock.Now)
}

func TestPutGet(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock)

	c.Put("k", "v", time.Minute)
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("expected live value, got %q ok=%v", got, ok)
	}
}

func TestGetExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock)

	c.Put("k", "v", time.Minute)
	clock.Advance(time.Minute + time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry must not be returned")
	}
}

func TestInvalidate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock)

	c.Put("k", "v", time.Minute)
	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("invalidated entry must not be returned")
	}
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := newTestCache(clock)

	c.Put("a", "1", time.Second)
	c.Put("b", "2", time.Hour)

	clock.Advance(2 * time.Minute)
	c.Put("c", "3", time.Hour) // triggers sweep

	if c.Len() != 2 {
		t.Fatalf("expected 2 live entries after sweep, got %d", c.Len())
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("unexpired entry must survive the sweep")
	}
}
