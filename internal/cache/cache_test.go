package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testClock(start time.Time) (func() time.Time, func(time.Duration)) {
	var mu sync.Mutex
	current := start

	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(d)
	}
	return now, advance
}

func TestPutGetTTL(t *testing.T) {
	c := New(Options{})
	now, advance := testClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	c.SetClock(now)

	key := Key(KindDNS, "example.com")
	c.Put(key, []byte(`{"records":2}`), time.Second)

	payload, found := c.Get(key)
	if !found {
		t.Fatal("expected an immediate hit")
	}
	if string(payload) != `{"records":2}` {
		t.Fatalf("payload = %s", payload)
	}

	advance(1100 * time.Millisecond)

	if _, found := c.Get(key); found {
		t.Fatal("expected a miss after the TTL elapsed")
	}

	// The expired miss must not have touched the hit counter.
	c.mu.Lock()
	entry := c.entries[key]
	c.mu.Unlock()
	if entry == nil {
		t.Fatal("entry should remain until the sweep")
	}
	if entry.HitCount != 1 {
		t.Fatalf("HitCount = %d, want 1 (misses must not count)", entry.HitCount)
	}
}

func TestHitNeverExtendsExpiry(t *testing.T) {
	c := New(Options{})
	now, advance := testClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	c.SetClock(now)

	key := Key(KindWhois, "example.com")
	c.Put(key, []byte("x"), 10*time.Second)

	c.mu.Lock()
	wantExpiry := c.entries[key].ExpiresAt
	c.mu.Unlock()

	advance(5 * time.Second)
	if _, found := c.Get(key); !found {
		t.Fatal("expected hit")
	}

	c.mu.Lock()
	entry := c.entries[key]
	c.mu.Unlock()
	if !entry.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("ExpiresAt moved from %v to %v on a read", wantExpiry, entry.ExpiresAt)
	}
	if entry.HitCount != 1 {
		t.Fatalf("HitCount = %d, want 1", entry.HitCount)
	}
}

func TestDefaultTTLPerKind(t *testing.T) {
	c := New(Options{})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now, _ := testClock(start)
	c.SetClock(now)

	cases := []struct {
		kind string
		want time.Duration
	}{
		{KindReputation, 24 * time.Hour},
		{KindDNS, 12 * time.Hour},
		{KindWhois, 7 * 24 * time.Hour},
		{KindHashReputation, 6 * time.Hour},
	}

	for _, tc := range cases {
		key := Key(tc.kind, "target")
		c.Put(key, []byte("x"), 0)

		c.mu.Lock()
		got := c.entries[key].ExpiresAt
		c.mu.Unlock()

		if want := start.Add(tc.want); !got.Equal(want) {
			t.Errorf("%s: ExpiresAt = %v, want %v", tc.kind, got, want)
		}
	}
}

func TestInvalidateExpired(t *testing.T) {
	c := New(Options{})
	now, advance := testClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	c.SetClock(now)

	c.Put(Key(KindDNS, "short"), []byte("x"), time.Second)
	c.Put(Key(KindDNS, "long"), []byte("x"), time.Hour)

	advance(2 * time.Second)

	if removed := c.InvalidateExpired(); removed != 1 {
		t.Fatalf("InvalidateExpired = %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if _, found := c.Get(Key(KindDNS, "long")); !found {
		t.Fatal("unexpired entry should survive the sweep")
	}
}

func TestCapacityEvictionRemovesBottomFifth(t *testing.T) {
	c := New(Options{})
	now, advance := testClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	c.SetClock(now)

	// 10,000 entries fit exactly; give the first 2,500 a hit each so the
	// eviction ranking has a clear bottom segment.
	for i := 0; i < 10_000; i++ {
		c.Put(Key(KindDNS, fmt.Sprintf("host-%05d", i)), []byte("x"), time.Hour)
		advance(time.Millisecond)
	}
	for i := 0; i < 2_500; i++ {
		if _, found := c.Get(Key(KindDNS, fmt.Sprintf("host-%05d", i))); !found {
			t.Fatalf("warm-up hit %d missed", i)
		}
	}

	c.Put(Key(KindDNS, "host-overflow"), []byte("x"), time.Hour)

	if got := c.Len(); got != 8_001 {
		t.Fatalf("Len after eviction = %d, want 8001", got)
	}
	if got := c.Snapshot().Evictions; got != 2_000 {
		t.Fatalf("Evictions = %d, want 2000", got)
	}

	// Everything that had a hit outranks the zero-hit tail and survives.
	for i := 0; i < 2_500; i++ {
		key := Key(KindDNS, fmt.Sprintf("host-%05d", i))
		c.mu.Lock()
		_, found := c.entries[key]
		c.mu.Unlock()
		if !found {
			t.Fatalf("hit entry %s was evicted before zero-hit entries", key)
		}
	}
}

func TestRemoveAndClearAreKeyAddressable(t *testing.T) {
	c := New(Options{})

	c.Put(Key(KindDNS, "a"), []byte("x"), time.Hour)
	c.Put(Key(KindDNS, "b"), []byte("x"), time.Hour)

	c.Remove(Key(KindDNS, "a"))
	if _, found := c.Get(Key(KindDNS, "a")); found {
		t.Fatal("removed entry should be gone even though it never expired")
	}
	if _, found := c.Get(Key(KindDNS, "b")); !found {
		t.Fatal("unrelated entry should survive Remove")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", c.Len())
	}
}

func TestGetOrFetchDeduplicatesConcurrentFills(t *testing.T) {
	c := New(Options{})

	var fills int64
	var fillMu sync.Mutex
	release := make(chan struct{})

	fill := func(ctx context.Context) ([]byte, error) {
		fillMu.Lock()
		fills++
		fillMu.Unlock()
		<-release
		return []byte("payload"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := c.GetOrFetch(context.Background(), Key(KindWhois, "example.com"), 0, fill)
			if err != nil {
				t.Errorf("GetOrFetch error: %v", err)
				return
			}
			if string(payload) != "payload" {
				t.Errorf("payload = %s", payload)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	fillMu.Lock()
	defer fillMu.Unlock()
	if fills != 1 {
		t.Fatalf("fill ran %d times, want 1", fills)
	}
}

func TestGetOrFetchErrorIsNotCached(t *testing.T) {
	c := New(Options{})
	wantErr := errors.New("upstream down")

	_, err := c.GetOrFetch(context.Background(), Key(KindDNS, "x"), 0, func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if c.Len() != 0 {
		t.Fatal("failed fill must not leave an entry behind")
	}
}
