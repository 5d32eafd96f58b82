package cache

import (
	"testing"
	"time"
)

func TestCacheTTL(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(5*time.Second, WithClock(func() time.Time { return clock }))

	c.Set("draw", "june")
	if got, ok := c.Get("draw"); !ok || got != "june" {
		t.Fatalf("Get = %v, %v; want june, true", got, ok)
	}

	clock = clock.Add(4 * time.Second)
	if _, ok := c.Get("draw"); !ok {
		t.Error("entry expired before its TTL")
	}

	clock = clock.Add(2 * time.Second)
	if _, ok := c.Get("draw"); ok {
		t.Error("entry survived past its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted, len = %d", c.Len())
	}
}

func TestCacheSetRefreshesTTL(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(5*time.Second, WithClock(func() time.Time { return clock }))

	c.Set("draw", "june")
	clock = clock.Add(4 * time.Second)
	c.Set("draw", "july")
	clock = clock.Add(4 * time.Second)

	if got, ok := c.Get("draw"); !ok || got != "july" {
		t.Errorf("Get = %v, %v; want july, true", got, ok)
	}
}

func TestCacheDelete(t *testing.T) {
	c := New(time.Minute)
	c.Set("draw", "june")
	c.Delete("draw")
	if _, ok := c.Get("draw"); ok {
		t.Error("deleted entry still present")
	}
	// Deleting a missing key is a no-op.
	c.Delete("absent")
}

func TestCacheSweepOnOverflow(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := New(5*time.Second, WithClock(func() time.Time { return clock }), WithMaxEntries(2))

	c.Set("a", 1)
	c.Set("b", 2)
	clock = clock.Add(10 * time.Second)

	// Both existing entries are expired; crossing the cap sweeps them out.
	c.Set("c", 3)
	if c.Len() != 1 {
		t.Errorf("len = %d after sweep, want 1", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("fresh entry lost in sweep")
	}
}
