package budget

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teranos/reportcopilot/errors"
)

// mockClock allows controlling time in tests
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock(now time.Time) *mockClock {
	return &mockClock{now: now}
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Given: 20 requests per 60s
// When: a client makes 21 requests inside the window
// Then: the 21st is rejected with ErrRateLimited
func TestKeyedLimiter_AtLimit(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewKeyedLimiterWithClock(20, 60*time.Second, clock.Now)

	for i := 0; i < 20; i++ {
		if err := limiter.Allow("alice"); err != nil {
			t.Fatalf("Call %d: expected no error, got %v", i+1, err)
		}
		clock.Advance(100 * time.Millisecond)
	}

	err := limiter.Allow("alice")
	if err == nil {
		t.Fatal("Call 21: expected rate limit error, got nil")
	}
	if !errors.Is(err, errors.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if !strings.Contains(err.Error(), "Rate limit exceeded: 20 requests/60s") {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

// Keys do not share a window
func TestKeyedLimiter_KeysAreIndependent(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewKeyedLimiterWithClock(2, time.Minute, clock.Now)

	for i := 0; i < 2; i++ {
		if err := limiter.Allow("alice"); err != nil {
			t.Fatalf("alice call %d failed: %v", i+1, err)
		}
	}
	if err := limiter.Allow("alice"); err == nil {
		t.Error("expected alice to be limited")
	}
	if err := limiter.Allow("bob"); err != nil {
		t.Errorf("expected bob to be allowed, got %v", err)
	}
}

// Given: a full window
// When: 30s pass, then another 31s
// Then: still limited at 30s, open again once the first calls expire
func TestKeyedLimiter_SlidingWindow(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewKeyedLimiterWithClock(10, time.Minute, clock.Now)

	for i := 0; i < 10; i++ {
		if err := limiter.Allow("k"); err != nil {
			t.Fatalf("Burst call %d failed: %v", i+1, err)
		}
	}

	clock.Advance(30 * time.Second)
	if err := limiter.Allow("k"); err == nil {
		t.Error("Expected rate limit error at 30s (still within window)")
	}

	clock.Advance(31 * time.Second)
	for i := 0; i < 10; i++ {
		if err := limiter.Allow("k"); err != nil {
			t.Errorf("Post-window call %d failed: %v", i+1, err)
		}
	}
}

// A call exactly one window old has expired
func TestKeyedLimiter_WindowBoundary(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewKeyedLimiterWithClock(1, time.Minute, clock.Now)

	if err := limiter.Allow("k"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Minute)
	if err := limiter.Allow("k"); err != nil {
		t.Errorf("expected call at window boundary to be allowed, got %v", err)
	}
}

func TestKeyedLimiter_Stats(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewKeyedLimiterWithClock(5, time.Minute, clock.Now)

	for i := 0; i < 3; i++ {
		_ = limiter.Allow("k")
		clock.Advance(10 * time.Second)
	}

	calls, remaining := limiter.Stats("k")
	if calls != 3 || remaining != 2 {
		t.Errorf("expected 3 calls / 2 remaining, got %d / %d", calls, remaining)
	}

	clock.Advance(45 * time.Second)
	calls, remaining = limiter.Stats("k")
	if calls != 1 || remaining != 4 {
		t.Errorf("expected 1 call / 4 remaining after expiry, got %d / %d", calls, remaining)
	}

	calls, remaining = limiter.Stats("unknown")
	if calls != 0 || remaining != 5 {
		t.Errorf("expected empty stats for unknown key, got %d / %d", calls, remaining)
	}
}

func TestKeyedLimiter_Reset(t *testing.T) {
	clock := newMockClock(time.Now())
	limiter := NewKeyedLimiterWithClock(1, time.Minute, clock.Now)

	_ = limiter.Allow("k")
	if err := limiter.Allow("k"); err == nil {
		t.Fatal("Expected rate limit error before reset")
	}

	limiter.Reset()
	if err := limiter.Allow("k"); err != nil {
		t.Errorf("Post-reset call failed: %v", err)
	}
}

// Submissions recorded by another process count against the window,
// and seeded times that have already expired are dropped
func TestKeyedLimiter_Seed(t *testing.T) {
	now := time.Now()
	clock := newMockClock(now)
	limiter := NewKeyedLimiterWithClock(3, time.Minute, clock.Now)

	limiter.Seed("alice", []time.Time{
		now.Add(-2 * time.Minute),
		now.Add(-30 * time.Second),
		now.Add(-10 * time.Second),
	})

	calls, remaining := limiter.Stats("alice")
	if calls != 2 || remaining != 1 {
		t.Fatalf("Expected 2 calls / 1 remaining after seeding, got %d / %d", calls, remaining)
	}
	if err := limiter.Allow("alice"); err != nil {
		t.Fatalf("Third call should succeed: %v", err)
	}
	if err := limiter.Allow("alice"); !errors.Is(err, errors.ErrRateLimited) {
		t.Fatalf("Fourth call should be rate limited, got %v", err)
	}

	clock.Advance(31 * time.Second)
	if err := limiter.Allow("alice"); err != nil {
		t.Errorf("Call after the oldest seeded time expired should succeed: %v", err)
	}

	limiter.Seed("bob", nil)
	if calls, _ := limiter.Stats("bob"); calls != 0 {
		t.Errorf("Seeding nothing should leave bob empty, got %d", calls)
	}
}

// 10 goroutines making 20 calls each against a 100 call window:
// exactly 100 succeed (run with -race)
func TestKeyedLimiter_Concurrent(t *testing.T) {
	limiter := NewKeyedLimiter(100, time.Minute)

	var wg sync.WaitGroup
	results := make(chan bool, 200)
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				results <- limiter.Allow("shared") == nil
			}
		}()
	}
	wg.Wait()
	close(results)

	successCount := 0
	for ok := range results {
		if ok {
			successCount++
		}
	}
	if successCount != 100 {
		t.Errorf("Expected exactly 100 successful calls, got %d", successCount)
	}
}
