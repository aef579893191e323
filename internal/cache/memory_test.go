package cache

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}

	c.Set("k", 42, 0)
	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Errorf("Expected 42, got %v (found=%v)", v, ok)
	}

	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Expected key to be deleted")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	c.Set("short", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("Expected entry to expire")
	}
}

func TestMemoryCache_Add(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if err := c.Add("payment", true, 0); err != nil {
		t.Fatalf("First add should succeed: %v", err)
	}
	if err := c.Add("payment", true, 0); !errors.Is(err, ErrExists) {
		t.Errorf("Expected ErrExists, got %v", err)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache(0, 0)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	if c.Len() != 2 {
		t.Errorf("Expected 2 items, got %d", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", c.Len())
	}
}

func TestKey(t *testing.T) {
	a := Key("session", "123")
	b := Key("session", "123")
	c := Key("payment", "123")

	if a != b {
		t.Error("Expected stable keys")
	}
	if a == c {
		t.Error("Expected namespaces to differ")
	}
	if !strings.HasPrefix(a, "factbot:v1:session:") {
		t.Errorf("Unexpected key format: %s", a)
	}
}
