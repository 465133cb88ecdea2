package engine

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// RateLimit represents a sliding rate limit window.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Valid reports whether both bounds are positive.
func (l RateLimit) Valid() bool {
	return l.RequestsPerWindow > 0 && l.WindowDuration > 0
}

// DefaultThrottles provides the methods throttled when no override is set.
var DefaultThrottles = map[string]RateLimit{
	core.MethodImportLightWalletAddress: {RequestsPerWindow: 10, WindowDuration: 600 * time.Second},
}

// SlidingWindowLimiter admits at most RequestsPerWindow events per key in any
// trailing WindowDuration. State lives in memory for the process lifetime.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

// window holds admitted timestamps for one key, oldest first.
type window struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// NewSlidingWindowLimiter creates an empty limiter.
func NewSlidingWindowLimiter() *SlidingWindowLimiter {
	return &SlidingWindowLimiter{windows: make(map[string]*window)}
}

// Admit prunes expired entries for key and records now if the window still
// has room. The check and the record happen under the key's lock.
func (l *SlidingWindowLimiter) Admit(key string, limit RateLimit, now time.Time) bool {
	_, ok := l.Reserve(key, limit, now)
	return ok
}

// Reserve is Admit that also returns the timestamp it recorded, for a later
// Release.
func (l *SlidingWindowLimiter) Reserve(key string, limit RateLimit, now time.Time) (time.Time, bool) {
	if !limit.Valid() {
		return time.Time{}, false
	}

	w := l.lookup(key, true)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now.Add(-limit.WindowDuration))

	if len(w.timestamps) >= limit.RequestsPerWindow {
		return time.Time{}, false
	}

	// Keep the slice sorted when callers sampled the clock out of order.
	if n := len(w.timestamps); n > 0 && now.Before(w.timestamps[n-1]) {
		now = w.timestamps[n-1]
	}
	w.timestamps = append(w.timestamps, now)
	return now, true
}

// Release removes one entry recorded at exactly at, returning the slot to
// the window. It reports false if no such entry remains.
func (l *SlidingWindowLimiter) Release(key string, at time.Time) bool {
	w := l.lookup(key, false)
	if w == nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for i := len(w.timestamps) - 1; i >= 0; i-- {
		if w.timestamps[i].Equal(at) {
			w.timestamps = append(w.timestamps[:i], w.timestamps[i+1:]...)
			return true
		}
		if w.timestamps[i].Before(at) {
			break
		}
	}
	return false
}

// Count returns the number of recorded entries newer than now-window.
// It never prunes, so it is an approximate introspection call.
func (l *SlidingWindowLimiter) Count(key string, windowDuration time.Duration, now time.Time) int {
	w := l.lookup(key, false)
	if w == nil {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-windowDuration)
	count := 0
	for i := len(w.timestamps) - 1; i >= 0; i-- {
		if !w.timestamps[i].After(cutoff) {
			break
		}
		count++
	}
	return count
}

// TimeUntilReset reports how long until the oldest recorded entry leaves the
// window. The bool is false when key has no recorded entries.
func (l *SlidingWindowLimiter) TimeUntilReset(key string, windowDuration time.Duration, now time.Time) (time.Duration, bool) {
	w := l.lookup(key, false)
	if w == nil {
		return 0, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.timestamps) == 0 {
		return 0, false
	}

	remaining := w.timestamps[0].Add(windowDuration).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Keys returns every key seen so far in sorted order.
func (l *SlidingWindowLimiter) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.windows))
	for key := range l.windows {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (l *SlidingWindowLimiter) lookup(key string, create bool) *window {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windows == nil {
		if !create {
			return nil
		}
		l.windows = make(map[string]*window)
	}

	w, ok := l.windows[key]
	if !ok && create {
		w = &window{}
		l.windows[key] = w
	}
	return w
}

// prune drops entries at or before cutoff, so a full window after the oldest
// entry TimeUntilReset reaches zero and the next call is admitted.
// Must be called with w.mu held.
func (w *window) prune(cutoff time.Time) {
	idx := 0
	for idx < len(w.timestamps) && !w.timestamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return
	}
	// Shift in place so the backing array stays bounded by the limit.
	n := copy(w.timestamps, w.timestamps[idx:])
	w.timestamps = w.timestamps[:n]
}

// MergeThrottles returns DefaultThrottles overlaid with overrides. Blank
// method names and invalid limits are skipped.
func MergeThrottles(overrides map[string]RateLimit) map[string]RateLimit {
	merged := make(map[string]RateLimit, len(DefaultThrottles)+len(overrides))
	for method, limit := range DefaultThrottles {
		merged[method] = limit
	}
	for method, limit := range overrides {
		method = strings.TrimSpace(method)
		if method == "" || !limit.Valid() {
			continue
		}
		merged[method] = limit
	}
	return merged
}
