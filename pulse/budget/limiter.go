package budget

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teranos/reportcopilot/errors"
)

// KeyedLimiter enforces max submissions per client within a sliding window.
// Each key keeps its own ordered list of accepted call times.
type KeyedLimiter struct {
	maxRequests int
	window      time.Duration
	mu          sync.Mutex
	calls       map[string][]time.Time
	timeNow     func() time.Time // Injectable for testing
}

// NewKeyedLimiter creates a limiter with real time
func NewKeyedLimiter(maxRequests int, window time.Duration) *KeyedLimiter {
	return NewKeyedLimiterWithClock(maxRequests, window, time.Now)
}

// NewKeyedLimiterWithClock creates a limiter with injectable clock (for testing)
func NewKeyedLimiterWithClock(maxRequests int, window time.Duration, timeNow func() time.Time) *KeyedLimiter {
	return &KeyedLimiter{
		maxRequests: maxRequests,
		window:      window,
		calls:       make(map[string][]time.Time),
		timeNow:     timeNow,
	}
}

// Allow records a call for key, or returns an error wrapping
// errors.ErrRateLimited when the window is already full
func (r *KeyedLimiter) Allow(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.timeNow()
	calls := r.prune(key, now)

	if len(calls) >= r.maxRequests {
		err := errors.Wrapf(errors.ErrRateLimited, "Rate limit exceeded: %d requests/%ds",
			r.maxRequests, int(r.window.Seconds()))
		err = errors.WithDetail(err, fmt.Sprintf("Client: %s", key))
		err = errors.WithDetail(err, fmt.Sprintf("Retry after: %s", calls[0].Add(r.window).Sub(now).Round(time.Second)))
		return err
	}

	r.calls[key] = append(calls, now)
	return nil
}

// Seed records earlier calls for key, such as submissions made by another
// process. Times must be ordered oldest first and not after now.
func (r *KeyedLimiter) Seed(key string, at []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := append(append([]time.Time(nil), at...), r.calls[key]...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Before(merged[j]) })
	r.calls[key] = merged
	r.prune(key, r.timeNow())
}

// prune drops call timestamps outside the window and returns what remains.
// Must be called with lock held.
func (r *KeyedLimiter) prune(key string, now time.Time) []time.Time {
	calls := r.calls[key]
	cutoff := now.Add(-r.window)

	// Timestamps are ordered, count expired from the front
	expired := 0
	for _, t := range calls {
		if t.After(cutoff) {
			break
		}
		expired++
	}

	calls = calls[expired:]
	if len(calls) == 0 {
		delete(r.calls, key)
		return nil
	}
	r.calls[key] = calls
	return calls
}

// Reset clears the state of every key
func (r *KeyedLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = make(map[string][]time.Time)
}

// Stats returns the calls recorded for key within the window and the remaining capacity
func (r *KeyedLimiter) Stats(key string) (callsInWindow int, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	callsInWindow = len(r.prune(key, r.timeNow()))
	remaining = r.maxRequests - callsInWindow
	if remaining < 0 {
		remaining = 0
	}

	return callsInWindow, remaining
}
