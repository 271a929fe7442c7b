package queue

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernhill/rookery/pkg/log"
	"github.com/fernhill/rookery/pkg/metrics"
	"github.com/fernhill/rookery/pkg/types"
)

// dispatchInterval is how often parked and due items are re-examined.
const dispatchInterval = 100 * time.Millisecond

// Executable is one dispatched run.
type Executable interface {
	Run(ctx context.Context)
}

// Interruptible lets a running executable learn why it is being
// cancelled, e.g. with an orphaned-parent cause during a delete
// cascade.
type Interruptible interface {
	Interrupt(cause types.Cause)
}

// Task is a schedulable unit, implemented by computed containers. The
// executable is created only at dispatch time, so a cancelled item
// never materializes a run.
type Task interface {
	// Key is the stable identity used for coalescing and cascade
	// cancellation; containers use their slash-delimited full name.
	Key() string
	// CreateExecutable builds the run for this dispatch.
	CreateExecutable(cause types.Cause) (Executable, error)
}

// Hook vets a task before dispatch. A non-nil error parks the item
// without removing it from the queue.
type Hook interface {
	CanRun(t Task) error
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(t Task) error

func (f HookFunc) CanRun(t Task) error { return f(t) }

type item struct {
	task  Task
	cause types.Cause
	due   time.Time
}

type runningEntry struct {
	cancel context.CancelFunc
	exec   Executable
}

// Queue is the in-process build queue.
type Queue struct {
	workers int
	hooks   []Hook
	logger  zerolog.Logger

	mu      sync.Mutex
	items   map[string]*item
	running map[string]*runningEntry

	inFlight atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a queue with a fixed worker pool and admission hooks.
func New(workers int, hooks ...Hook) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		workers: workers,
		hooks:   hooks,
		logger:  log.WithComponent("queue"),
		items:   make(map[string]*item),
		running: make(map[string]*runningEntry),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the dispatcher loop.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Stop halts dispatching and waits for in-flight runs to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}

func (q *Queue) run() {
	defer q.wg.Done()

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.dispatchOnce()
		case <-q.stopCh:
			return
		}
	}
}

// Schedule inserts the task, to become dispatchable after delay. A key
// already pending coalesces to the earliest due time and reports true;
// a key currently running reports false.
func (q *Queue) Schedule(t Task, delay time.Duration, cause types.Cause) bool {
	key := t.Key()
	due := time.Now().Add(delay)

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.running[key]; ok {
		return false
	}
	if it, ok := q.items[key]; ok {
		if due.Before(it.due) {
			it.due = due
		}
		return true
	}
	q.items[key] = &item{task: t, cause: cause, due: due}
	metrics.QueueDepth.Set(float64(len(q.items)))
	return true
}

// CancelPrefix removes pending items whose key is fullName or a
// descendant of it, and returns how many were swept.
func (q *Queue) CancelPrefix(fullName string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	swept := 0
	for key := range q.items {
		if key == fullName || strings.HasPrefix(key, fullName+"/") {
			delete(q.items, key)
			swept++
		}
	}
	if swept > 0 {
		metrics.QueueDepth.Set(float64(len(q.items)))
	}
	return swept
}

// InterruptPrefix cancels the contexts of running items whose key is
// fullName or a descendant, handing interruptible runs the cause. The
// runs themselves decide how quickly they observe the interrupt.
func (q *Queue) InterruptPrefix(fullName string, cause types.Cause) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	hit := 0
	for key, r := range q.running {
		if key == fullName || strings.HasPrefix(key, fullName+"/") {
			if i, ok := r.exec.(Interruptible); ok {
				i.Interrupt(cause)
			}
			r.cancel()
			hit++
		}
	}
	return hit
}

// RunningPrefix counts running items whose key is fullName or a
// descendant of it. The delete cascade polls this while waiting for
// interrupts to land.
func (q *Queue) RunningPrefix(fullName string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for key := range q.running {
		if key == fullName || strings.HasPrefix(key, fullName+"/") {
			n++
		}
	}
	return n
}

// Running counts runs currently in flight. Safe to call from admission
// hooks during dispatch.
func (q *Queue) Running() int {
	return int(q.inFlight.Load())
}

// IsRunning reports whether the key is in flight right now.
func (q *Queue) IsRunning(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.running[key]
	return ok
}

// Depth counts pending items.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// dispatchOnce moves due, admitted items onto free workers. Hooks run
// outside the queue lock so they may consult the queue freely.
func (q *Queue) dispatchOnce() {
	now := time.Now()

	q.mu.Lock()
	var due []*item
	for _, it := range q.items {
		if !now.Before(it.due) {
			due = append(due, it)
		}
	}
	q.mu.Unlock()

	for _, it := range due {
		if q.Running() >= q.workers {
			return
		}
		if err := q.admit(it.task); err != nil {
			continue
		}
		q.dispatch(it)
	}
}

func (q *Queue) admit(t Task) error {
	for _, h := range q.hooks {
		if err := h.CanRun(t); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) dispatch(it *item) {
	key := it.task.Key()

	q.mu.Lock()
	if _, still := q.items[key]; !still {
		// Swept between the scan and now.
		q.mu.Unlock()
		return
	}
	exec, err := it.task.CreateExecutable(it.cause)
	if err != nil || exec == nil {
		delete(q.items, key)
		metrics.QueueDepth.Set(float64(len(q.items)))
		q.mu.Unlock()
		if err != nil {
			q.logger.Warn().Err(err).Str("key", key).Msg("dropping undispatchable item")
		}
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	delete(q.items, key)
	q.running[key] = &runningEntry{cancel: cancel, exec: exec}
	metrics.QueueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()

	q.inFlight.Add(1)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer cancel()
		exec.Run(ctx)
		q.inFlight.Add(-1)
		q.mu.Lock()
		delete(q.running, key)
		q.mu.Unlock()
	}()
}
