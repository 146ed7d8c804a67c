package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/scout/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func answer(text string) *models.Answer {
	return &models.Answer{Answer: text, Sources: []models.Source{{DocID: "d1", FileName: "a.pdf", PageNo: 1}}}
}

func TestNewKey(t *testing.T) {
	tests := []struct {
		owner, query string
		k            int
		want         string
	}{
		{"alice", "What is Revenue?", 5, `"alice":"what is revenue?":5`},
		{"alice", "  what   is\trevenue? ", 5, `"alice":"what is revenue?":5`},
		{"bob", "q", 10, `"bob":"q":10`},
		{"org:alice", "secret plan", 5, `"org:alice":"secret plan":5`},
		{"org", "alice:secret plan", 5, `"org":"alice:secret plan":5`},
	}
	for _, tt := range tests {
		if got := NewKey(tt.owner, tt.query, tt.k).String(); got != tt.want {
			t.Errorf("NewKey(%q, %q, %d) = %q, want %q", tt.owner, tt.query, tt.k, got, tt.want)
		}
	}
}

func TestCache_HitAndExpiry(t *testing.T) {
	clock := newClock()
	c := New(time.Minute, 0, WithClock(clock.Now))
	key := NewKey("alice", "revenue", 5)

	if _, ok := c.Get(key); ok {
		t.Fatal("empty cache should miss")
	}
	c.Set(key, answer("twelve percent"))

	got, ok := c.Get(NewKey("alice", "  REVENUE ", 5))
	if !ok {
		t.Fatal("expected hit for equivalent query")
	}
	if !got.Cached || got.Answer != "twelve percent" || len(got.Sources) != 1 {
		t.Errorf("unexpected cached answer: %+v", got)
	}

	clock.Advance(59 * time.Second)
	if _, ok := c.Get(key); !ok {
		t.Error("entry should still be fresh")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get(key); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be deleted on read, len=%d", c.Len())
	}
}

func TestCache_KeyDimensions(t *testing.T) {
	c := New(time.Minute, 0)
	c.Set(NewKey("alice", "q", 5), answer("a"))
	if _, ok := c.Get(NewKey("bob", "q", 5)); ok {
		t.Error("other owner must miss")
	}
	if _, ok := c.Get(NewKey("alice", "q", 6)); ok {
		t.Error("other k must miss")
	}
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := New(time.Minute, 0)
	key := NewKey("alice", "q", 5)
	orig := answer("a")
	c.Set(key, orig)
	orig.Sources[0].FileName = "changed.pdf"
	if orig.Cached {
		t.Error("Set must not mark the caller's value")
	}

	got, _ := c.Get(key)
	if got.Sources[0].FileName != "a.pdf" {
		t.Error("stored value aliased the caller's slice")
	}
	got.Answer = "mutated"
	again, _ := c.Get(key)
	if again.Answer != "a" {
		t.Error("Get returned the stored value instead of a copy")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := New(time.Minute, 0)
	c.Set(NewKey("alice", "q1", 5), answer("1"))
	c.Set(NewKey("alice", "q2", 5), answer("2"))
	c.Set(NewKey("alice:x", "q1", 5), answer("3"))
	c.Set(NewKey("bob", "q1", 5), answer("4"))

	if n := c.Invalidate("alice"); n != 2 {
		t.Errorf("Invalidate removed %d, want 2", n)
	}
	if _, ok := c.Get(NewKey("alice:x", "q1", 5)); !ok {
		t.Error("owner with a shared prefix must be kept")
	}
	if _, ok := c.Get(NewKey("bob", "q1", 5)); !ok {
		t.Error("other owner must be kept")
	}
	if n := c.Invalidate("nobody"); n != 0 {
		t.Errorf("Invalidate(nobody) = %d", n)
	}
}

func TestCache_OwnerWithSeparatorDoesNotCollide(t *testing.T) {
	c := New(time.Minute, 0)
	c.Set(NewKey("org:alice", "secret plan", 5), answer("alice's private answer"))

	if got, ok := c.Get(NewKey("org", "alice:secret plan", 5)); ok {
		t.Fatalf("owner org received %q", got.Answer)
	}
	if NewKey("org:alice", "secret plan", 5).String() == NewKey("org", "alice:secret plan", 5).String() {
		t.Error("distinct keys render to the same string")
	}
	if n := c.Invalidate("org"); n != 0 {
		t.Errorf("Invalidate(org) removed %d entries of org:alice", n)
	}
}

func TestCache_SetIfCurrent(t *testing.T) {
	c := New(time.Minute, 0)
	key := NewKey("alice", "revenue", 5)

	gen := c.Generation("alice")
	c.Invalidate("alice")
	if c.SetIfCurrent(key, answer("before delete"), gen) {
		t.Error("answer computed before Invalidate was stored")
	}
	if _, ok := c.Get(key); ok {
		t.Error("stale answer is served")
	}

	if !c.SetIfCurrent(key, answer("after delete"), c.Generation("alice")) {
		t.Fatal("current generation was rejected")
	}
	if got, ok := c.Get(key); !ok || got.Answer != "after delete" {
		t.Errorf("Get = %v, %v", got, ok)
	}

	bobGen := c.Generation("bob")
	c.Invalidate("alice")
	if !c.SetIfCurrent(NewKey("bob", "revenue", 5), answer("bob"), bobGen) {
		t.Error("invalidating alice must not affect bob")
	}
}

func TestCache_Sweep(t *testing.T) {
	clock := newClock()
	c := New(time.Minute, 3, WithClock(clock.Now))
	for i := 0; i < 3; i++ {
		c.Set(NewKey("alice", fmt.Sprintf("old %d", i), 5), answer("old"))
	}
	clock.Advance(2 * time.Minute)
	c.Set(NewKey("alice", "fresh", 5), answer("fresh"))
	if c.Len() != 1 {
		t.Errorf("expected expired entries to be swept, len=%d", c.Len())
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New(time.Minute, 10)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := NewKey(fmt.Sprintf("owner-%d", i%3), fmt.Sprintf("q%d", j%20), 5)
				c.Set(key, answer("x"))
				c.Get(key)
				if j%25 == 0 {
					c.Invalidate(key.OwnerID)
				}
			}
		}(i)
	}
	wg.Wait()
}
