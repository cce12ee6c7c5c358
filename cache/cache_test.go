package cache

import (
	"testing"
	"time"
)

func newTestCache(t *testing.T, size int) (*Cache[string], *time.Time) {
	t.Helper()
	c := New[string](size, time.Hour)
	t.Cleanup(c.Stop)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestGet_MaxAge(t *testing.T) {
	c, now := newTestCache(t, 10)
	c.Set("k", "v")

	*now = now.Add(30 * time.Second)

	tests := []struct {
		name   string
		maxAge time.Duration
		wantOK bool
	}{
		{"zero max age never hits", 0, false},
		{"younger than max age", time.Minute, true},
		{"older than max age", 10 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := c.Get("k", tt.maxAge)
			if ok != tt.wantOK {
				t.Fatalf("Get ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && v != "v" {
				t.Errorf("Get = %q, want v", v)
			}
		})
	}

	if _, ok := c.Get("missing", time.Hour); ok {
		t.Error("missing key should miss")
	}
}

func TestSet_EvictsOldest(t *testing.T) {
	c, now := newTestCache(t, 2)

	c.Set("a", "1")
	*now = now.Add(time.Second)
	c.Set("b", "2")
	*now = now.Add(time.Second)
	c.Set("a", "1b") // overwrite, no eviction
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}

	*now = now.Add(time.Second)
	c.Set("c", "3")

	if _, ok := c.Get("b", time.Hour); ok {
		t.Error("oldest entry b should have been evicted")
	}
	if v, ok := c.Get("a", time.Hour); !ok || v != "1b" {
		t.Errorf("a = %q, %v; want 1b", v, ok)
	}
	if _, ok := c.Get("c", time.Hour); !ok {
		t.Error("c should be present")
	}
}

func TestSweep(t *testing.T) {
	c, now := newTestCache(t, 10)
	c.Set("old", "x")
	*now = now.Add(2 * time.Hour)
	c.Set("new", "y")

	c.sweep()

	if c.Len() != 1 {
		t.Errorf("Len after sweep = %d, want 1", c.Len())
	}
	c.Delete("new")
	if c.Len() != 0 {
		t.Errorf("Len after delete = %d, want 0", c.Len())
	}
}

func TestKey(t *testing.T) {
	if Key("u", "auto") == Key("u", "http") {
		t.Error("different parts should give different keys")
	}
	if Key("u", "auto") != Key("u", "auto") {
		t.Error("Key should be deterministic")
	}
}
