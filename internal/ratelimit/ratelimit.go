// Package ratelimit implements the sliding-window limiter of §4.3 step 2:
// at most max_requests completed acquisitions per time_window, global to
// one pipeline instance.
package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow is a mutex-guarded rolling window of request timestamps.
type SlidingWindow struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time
}

// New builds a SlidingWindow allowing maxRequests per window.
func New(maxRequests int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		maxRequests: maxRequests,
		window:      window,
	}
}

// Acquire blocks (if necessary) until a permit is available, then
// records the permit. If the window is full, it sleeps until the oldest
// record expires before recording now — matching the pruning shape of
// the original rate limiter exactly.
func (w *SlidingWindow) Acquire() {
	for {
		w.mu.Lock()
		now := time.Now()
		w.prune(now)

		if len(w.timestamps) < w.maxRequests {
			w.timestamps = append(w.timestamps, now)
			w.mu.Unlock()
			return
		}

		oldest := w.timestamps[0]
		wait := w.window - now.Sub(oldest)
		w.mu.Unlock()

		if wait > 0 {
			time.Sleep(wait)
		}
	}
}

// prune drops timestamps older than the window. Caller holds w.mu.
func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.timestamps) && w.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = w.timestamps[i:]
	}
}

// Count returns the number of permits currently counted within the window.
func (w *SlidingWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(time.Now())
	return len(w.timestamps)
}
