package cache

import (
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache[time.Duration](time.Minute)
	defer c.Close()

	if _, ok := c.Get("a.mp3"); ok {
		t.Error("Expected miss on empty cache")
	}

	c.Set("a.mp3", 120*time.Second)
	if v, ok := c.Get("a.mp3"); !ok || v != 120*time.Second {
		t.Errorf("Expected hit with 120s, got %v %v", v, ok)
	}
	if c.Size() != 1 {
		t.Errorf("Expected size 1, got %d", c.Size())
	}

	c.Delete("a.mp3")
	if _, ok := c.Get("a.mp3"); ok {
		t.Error("Expected miss after delete")
	}

	c.Set("b.mp3", time.Second)
	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Expected empty cache after clear, got %d", c.Size())
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache[string](20 * time.Millisecond)
	defer c.Close()

	c.Set("k", "v")
	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestMemoryCacheCloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache[int](time.Minute)
	c.Close()
	c.Close()
}
