package cache

import (
	"testing"
	"time"
)

func TestLRUCache_SetGet(t *testing.T) {
	c := NewLRUCache[int64](4, time.Minute)

	c.Set("a", 1)
	got, ok := c.Get("a")
	if !ok || got != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get(missing) returned a value")
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int64](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recently used
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to survive eviction")
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_EntryTTL(t *testing.T) {
	c := NewLRUCache[int64](4, time.Minute)

	c.SetWithTTL("short", 1, time.Millisecond)
	c.SetWithTTL("gone", 2, -time.Second)
	c.Set("long", 3)

	if _, ok := c.Get("gone"); ok {
		t.Fatal("non-positive TTL entry should not have been stored")
	}

	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Fatal("expired entry should not be returned")
	}
	if _, ok := c.Get("long"); !ok {
		t.Fatal("unexpired entry should still be returned")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c := NewLRUCache[int64](8, time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	c.SetWithTTL("c", 3, time.Minute)

	time.Sleep(5 * time.Millisecond)

	if removed := c.CleanExpired(); removed != 2 {
		t.Fatalf("CleanExpired() = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
}

func TestManager_PeriodicCleanup(t *testing.T) {
	m := NewManager()
	c := NewLRUCache[int64](4, time.Millisecond)
	m.Register(c)
	m.StartCleanup(time.Millisecond)

	c.Set("a", 1)
	time.Sleep(10 * time.Millisecond)

	m.Stop()

	if c.Size() != 0 {
		t.Fatalf("Size() = %d after cleanup, want 0", c.Size())
	}
}
