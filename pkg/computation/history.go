package computation

import (
	"sync"
	"time"
)

// maxHistory bounds the rolling duration window per container.
const maxHistory = 32

// History is the rolling window of recent run durations for one
// container. It feeds the estimated-duration display and survives
// restarts through the persisted run record.
type History struct {
	mu        sync.Mutex
	durations []time.Duration
}

// Add appends a finished run's duration, dropping the oldest entry
// beyond the window.
func (h *History) Add(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.durations = append(h.durations, d)
	if len(h.durations) > maxHistory {
		h.durations = h.durations[len(h.durations)-maxHistory:]
	}
}

// Estimated returns the arithmetic mean of the window, or -1 when no
// run has finished yet.
func (h *History) Estimated() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.durations) == 0 {
		return -1
	}
	var sum time.Duration
	for _, d := range h.durations {
		sum += d
	}
	return sum / time.Duration(len(h.durations))
}

// Snapshot copies the window, oldest first.
func (h *History) Snapshot() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]time.Duration, len(h.durations))
	copy(out, h.durations)
	return out
}

// Restore replaces the window, keeping only the newest entries when the
// input exceeds the bound. Used when reloading a persisted record.
func (h *History) Restore(ds []time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(ds) > maxHistory {
		ds = ds[len(ds)-maxHistory:]
	}
	h.durations = append([]time.Duration(nil), ds...)
}

// Len reports the current window size.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.durations)
}
