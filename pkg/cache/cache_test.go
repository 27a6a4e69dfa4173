package cache

import (
	"testing"
	"time"
)

func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestSetGetAndExpire(t *testing.T) {
	c := New(10)
	clock, advance := fakeClock(time.Unix(1000, 0))
	c.now = clock

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected no value initially")
	}
	c.Set("k", "hello", time.Minute)
	if v, ok := c.Get("k"); !ok || v.(string) != "hello" {
		t.Fatalf("expected value 'hello', got %v ok=%v", v, ok)
	}
	advance(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired value to be gone")
	}
	if c.Len() != 0 {
		t.Fatalf("expected lazy delete on read, len=%d", c.Len())
	}
}

func TestDelete(t *testing.T) {
	c := New(0)
	c.Set("k", 42, time.Second)
	if v, ok := c.Get("k"); !ok || v.(int) != 42 {
		t.Fatalf("expected 42 present before delete, got %v ok=%v", v, ok)
	}
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected deleted value to be absent")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(2)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a") // a is now most recent
	c.Set("c", 3, 0)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected least recently used key to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected recently read key to survive")
	}
	c.SetMaxItems(1)
	if c.Len() != 1 {
		t.Fatalf("expected trim to 1 item, got %d", c.Len())
	}
}

func TestPurgeExpired(t *testing.T) {
	c := New(0)
	clock, advance := fakeClock(time.Unix(0, 0))
	c.now = clock
	c.Set("short", 1, time.Second)
	c.Set("forever", 2, 0)
	advance(time.Hour)
	c.purgeExpired()
	if c.Len() != 1 {
		t.Fatalf("expected only the non-expiring key to remain, len=%d", c.Len())
	}
}

func TestKeys(t *testing.T) {
	if Key("profile", 7) != "profile:7" {
		t.Fatalf("unexpected key %q", Key("profile", 7))
	}
	if KeyFromStrings("a", "bc") == KeyFromStrings("ab", "c") {
		t.Fatalf("expected separator to keep parts distinct")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	c.Set("k", 1, 0)
	c.Delete("k")
	if _, ok := c.Get("k"); ok || c.Len() != 0 {
		t.Fatalf("nil cache must behave as empty")
	}
}

func TestJanitorStops(t *testing.T) {
	c := New(0)
	c.Set("k", 1, time.Millisecond)
	stop := c.StartJanitor(5 * time.Millisecond)
	defer stop()

	deadline := time.Now().Add(time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected janitor to purge the expired key")
		}
		time.Sleep(5 * time.Millisecond)
	}
	stop()
	stop() // idempotent
}
