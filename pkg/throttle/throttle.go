package throttle

import (
	"errors"
	"sync"
	"time"

	"github.com/fernhill/rookery/pkg/metrics"
)

// window is how long an admission reservation stays valid.
const window = time.Second

// ErrBlocked is the reason handed to the queue when the cap is reached.
var ErrBlocked = errors.New("max concurrent indexing")

type reservation struct {
	key string
	at  time.Time
}

// Throttle is the process-wide computation gate. Construct one at
// service start and install it as a queue admission hook.
type Throttle struct {
	limit   int
	running func() int

	mu         sync.Mutex
	nonBlocked []reservation
	now        func() time.Time
}

// New builds a throttle. running must count computations in flight
// across all executors.
func New(limit int, running func() int) *Throttle {
	return &Throttle{
		limit:   limit,
		running: running,
		now:     time.Now,
	}
}

// Limit returns the configured cap.
func (t *Throttle) Limit() int { return t.limit }

// CanRun decides whether the item identified by key may start now. A
// nil return admits it; ErrBlocked parks it in the queue. Items already
// holding a fresh reservation are always admitted, so the queue may ask
// repeatedly within the window without consuming extra slots.
func (t *Throttle) CanRun(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.purge(now)

	approved := len(t.nonBlocked)
	found := false
	for _, r := range t.nonBlocked {
		if r.key == key {
			found = true
			break
		}
	}

	if !found && t.running()+approved >= t.limit {
		metrics.QueueBlocked.WithLabelValues("throttle").Inc()
		return ErrBlocked
	}
	if !found {
		t.nonBlocked = append(t.nonBlocked, reservation{key: key, at: now})
	}
	return nil
}

// purge drops reservations older than the window. Called under mu.
func (t *Throttle) purge(now time.Time) {
	kept := t.nonBlocked[:0]
	for _, r := range t.nonBlocked {
		if now.Sub(r.at) <= window {
			kept = append(kept, r)
		}
	}
	t.nonBlocked = kept
}
