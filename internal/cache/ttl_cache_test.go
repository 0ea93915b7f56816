package cache

import (
	"testing"
	"time"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 20*time.Millisecond)

	if got, ok := c.Get("a"); !ok || got != 1 {
		t.Fatalf("expected fresh hit, got %v %v", got, ok)
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 0)

	time.Sleep(10 * time.Millisecond)
	if got, ok := c.Get("a"); !ok || got != 1 {
		t.Fatalf("expected persistent entry, got %v %v", got, ok)
	}
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	var c NoopCache[string, int]
	c.Set("a", 1, time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("noop cache must never hit")
	}
}
