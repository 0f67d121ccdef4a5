package ratelimit

import (
	"sync"
	"testing"
	"time"

	"kestrel/internal/domain"
)

func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
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

func TestSlidingWindowLimit(t *testing.T) {
	limiter := New(map[string]domain.RateLimit{"upstream": {MaxRequests: 4, WindowSeconds: 60}})
	now, advance := fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	limiter.SetClock(now)

	for i := 0; i < 4; i++ {
		if !limiter.RecordRequest("upstream") {
			t.Fatalf("request %d should have been recorded", i+1)
		}
	}

	if limiter.RecordRequest("upstream") {
		t.Fatal("5th request inside the window should be rejected")
	}
	if limiter.IsAllowed("upstream") {
		t.Fatal("IsAllowed should be false at the limit")
	}
	if got := limiter.Remaining("upstream"); got != 0 {
		t.Fatalf("Remaining = %d, want 0", got)
	}

	advance(61 * time.Second)

	if !limiter.RecordRequest("upstream") {
		t.Fatal("request after the window elapsed should succeed")
	}
	if got := limiter.Remaining("upstream"); got != 3 {
		t.Fatalf("Remaining after window reset = %d, want 3", got)
	}
}

func TestUnknownServiceAdoptsDefaultLimit(t *testing.T) {
	limiter := New(nil)

	limit := limiter.Limit("never-configured")
	if limit != DefaultLimits[DefaultService] {
		t.Fatalf("unknown service limit = %+v, want default %+v", limit, DefaultLimits[DefaultService])
	}

	if !limiter.RecordRequest("never-configured") {
		t.Fatal("first request on an unknown service should be recorded")
	}
}

func TestResetTime(t *testing.T) {
	limiter := New(map[string]domain.RateLimit{"svc": {MaxRequests: 2, WindowSeconds: 30}})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now, advance := fixedClock(start)
	limiter.SetClock(now)

	if got := limiter.ResetTime("svc"); !got.Equal(start) {
		t.Fatalf("ResetTime with empty window = %v, want %v", got, start)
	}

	limiter.RecordRequest("svc")
	advance(10 * time.Second)
	limiter.RecordRequest("svc")

	want := start.Add(30 * time.Second)
	if got := limiter.ResetTime("svc"); !got.Equal(want) {
		t.Fatalf("ResetTime = %v, want %v", got, want)
	}
}

func TestResetClearsWindow(t *testing.T) {
	limiter := New(map[string]domain.RateLimit{"svc": {MaxRequests: 1, WindowSeconds: 60}})

	limiter.RecordRequest("svc")
	if limiter.IsAllowed("svc") {
		t.Fatal("window should be full")
	}

	limiter.Reset("svc")
	if !limiter.IsAllowed("svc") {
		t.Fatal("window should be clear after Reset")
	}
}

func TestConcurrentRecordingNeverOverAdmits(t *testing.T) {
	limiter := New(map[string]domain.RateLimit{"svc": {MaxRequests: 50, WindowSeconds: 60}})

	var wg sync.WaitGroup
	var count int64
	var countMu sync.Mutex

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.RecordRequest("svc") {
				countMu.Lock()
				count++
				countMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count != 50 {
		t.Fatalf("admitted %d requests, want exactly 50", count)
	}
}
