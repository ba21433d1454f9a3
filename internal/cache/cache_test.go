package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKeyVariants(t *testing.T) {
	orig := OriginalKey("/a.cbz", "p1.png")
	sized := SizedKey("/a.cbz", "p1.png", 280, 280)
	meta := MetaKey("/a.cbz")

	if orig == sized {
		t.Error("original and sized keys for the same entry must differ")
	}
	if sized != SizedKey("/a.cbz", "p1.png", 280, 280) {
		t.Error("identical sized requests must produce identical keys")
	}
	if sized == SizedKey("/a.cbz", "p1.png", 180, 180) {
		t.Error("different target sizes must produce different keys")
	}
	if meta.Entry != "" {
		t.Error("metadata keys carry no entry name")
	}
}

func TestGetPut(t *testing.T) {
	c, err := New[string]("test", 4)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if _, ok := c.Get(OriginalKey("/a.cbz", "p1")); ok {
		t.Error("Get on empty cache should miss")
	}

	c.Put(OriginalKey("/a.cbz", "p1"), "one")
	got, ok := c.Get(OriginalKey("/a.cbz", "p1"))
	if !ok || got != "one" {
		t.Errorf("Get = (%q, %v), want (one, true)", got, ok)
	}

	stats := c.Stats()
	want := Stats{Tier: "test", Hits: 1, Misses: 1, CurrentSize: 1, Capacity: 4}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestEvictionOrder(t *testing.T) {
	c, err := New[int]("test", 2)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	k1 := OriginalKey("/a.cbz", "p1")
	k2 := OriginalKey("/a.cbz", "p2")
	k3 := OriginalKey("/a.cbz", "p3")

	c.Put(k1, 1)
	c.Put(k2, 2)

	// Touch k1 so k2 becomes least recently used.
	if _, ok := c.Get(k1); !ok {
		t.Fatal("k1 should be cached")
	}

	c.Put(k3, 3)

	if _, ok := c.Get(k2); ok {
		t.Error("k2 should have been evicted as least recently used")
	}
	if _, ok := c.Get(k1); !ok {
		t.Error("recently used k1 should survive")
	}
	if _, ok := c.Get(k3); !ok {
		t.Error("newly inserted k3 should be cached")
	}
}

func TestReleaseExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	released := make(map[string]int)

	c, err := New[string]("test", 2, WithRelease[string](func(key Key, value string) {
		mu.Lock()
		released[value]++
		mu.Unlock()
	}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	k := OriginalKey("/a.cbz", "p1")

	c.Put(k, "first")
	c.Put(k, "second") // replacement releases "first"
	c.Put(OriginalKey("/a.cbz", "p2"), "filler")
	c.Put(OriginalKey("/a.cbz", "p3"), "evictor") // evicts "second"
	c.Clear()                                     // releases the rest

	mu.Lock()
	defer mu.Unlock()
	for _, value := range []string{"first", "second", "filler", "evictor"} {
		if released[value] != 1 {
			t.Errorf("value %q released %d times, want exactly 1", value, released[value])
		}
	}
}

func TestReleaseUnderConcurrency(t *testing.T) {
	var mu sync.Mutex
	released := make(map[Key]int)

	c, err := New[int]("test", 8, WithRelease[int](func(key Key, _ int) {
		mu.Lock()
		released[key]++
		mu.Unlock()
	}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := OriginalKey("/a.cbz", fmt.Sprintf("g%d-p%d", g, i))
				c.Put(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	c.Clear()

	mu.Lock()
	defer mu.Unlock()
	for key, n := range released {
		if n != 1 {
			t.Errorf("key %v released %d times, want exactly 1", key, n)
		}
	}
	if len(released) != 800 {
		t.Errorf("released %d values, want 800", len(released))
	}
}

func TestWeigher(t *testing.T) {
	c, err := New[[]byte]("test", 4, WithWeigher[[]byte](func(v []byte) int64 {
		return int64(len(v))
	}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	c.Put(OriginalKey("/a.cbz", "p1"), make([]byte, 100))
	c.Put(OriginalKey("/a.cbz", "p2"), make([]byte, 50))

	if got := c.Stats().WeightBytes; got != 150 {
		t.Errorf("WeightBytes = %d, want 150", got)
	}

	c.Remove(OriginalKey("/a.cbz", "p1"))
	if got := c.Stats().WeightBytes; got != 50 {
		t.Errorf("WeightBytes after remove = %d, want 50", got)
	}
}

func TestResize(t *testing.T) {
	c, err := New[int]("test", 4)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		c.Put(OriginalKey("/a.cbz", fmt.Sprintf("p%d", i)), i)
	}

	if err := c.Resize(2); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if got := c.Len(); got != 2 {
		t.Errorf("Len after shrink = %d, want 2", got)
	}

	if err := c.Resize(0); err == nil {
		t.Error("Resize(0) should fail")
	}
}

func TestRemoveArchive(t *testing.T) {
	c, err := New[int]("test", 8)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	c.Put(OriginalKey("/a.cbz", "p1"), 1)
	c.Put(SizedKey("/a.cbz", "p1", 280, 280), 2)
	c.Put(OriginalKey("/b.cbz", "p1"), 3)

	if got := c.RemoveArchive("/a.cbz"); got != 2 {
		t.Errorf("RemoveArchive = %d, want 2", got)
	}
	if _, ok := c.Get(OriginalKey("/b.cbz", "p1")); !ok {
		t.Error("entries for other archives must survive")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestTierIndependence(t *testing.T) {
	full, err := New[string]("full", 2)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	thumb, err := New[string]("thumb", 2)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	full.Put(OriginalKey("/a.cbz", "p1"), "full")
	thumb.Put(SizedKey("/a.cbz", "p1", 280, 280), "thumb")

	// Fill and overflow the thumbnail tier.
	thumb.Put(SizedKey("/a.cbz", "p2", 280, 280), "t2")
	thumb.Put(SizedKey("/a.cbz", "p3", 280, 280), "t3")

	if _, ok := full.Get(OriginalKey("/a.cbz", "p1")); !ok {
		t.Error("pressure on one tier must not evict from another")
	}
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New[int]("test", 0); err == nil {
		t.Error("New with zero capacity should fail")
	}
}
