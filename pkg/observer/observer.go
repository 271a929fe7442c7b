package observer

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fernhill/rookery/pkg/types"
)

// Status is the transient state of one observed name.
type Status int

const (
	StatusSeen Status = iota
	StatusCreated
	StatusUpdated
	StatusCompleted
)

// Host is the container surface an observer mediates access to. Names
// are compared case-insensitively by the host's child map.
type Host interface {
	// Child returns the current child registered under name.
	Child(name string) (types.Child, bool)
	// AttachChild commits a newly created child into the child map.
	AttachChild(c types.Child) error
}

// Observer is a computation-scoped synchronisation primitive
// guaranteeing at most one concurrent touch per child name. It owns
// three collections: names observed during the run, children that were
// present at the start and have not been re-seen (orphaned), and names
// some goroutine currently holds (busy).
type Observer struct {
	host Host

	mu       sync.Mutex
	observed map[string]string        // lower-cased -> original
	orphaned map[string]types.Child   // lower-cased -> child
	busy     map[string]chan struct{} // lower-cased -> closed on release
	closed   bool
}

// New returns a reconciliation observer whose orphan set starts as the
// given snapshot of the current children, keyed by business name.
func New(host Host, current map[string]types.Child) *Observer {
	o := &Observer{
		host:     host,
		observed: make(map[string]string),
		orphaned: make(map[string]types.Child, len(current)),
		busy:     make(map[string]chan struct{}),
	}
	for name, c := range current {
		o.orphaned[key(name)] = c
	}
	return o
}

// NewForEvents returns an events observer. Its orphan set starts and
// stays empty: out-of-band handlers never trigger retention.
func NewForEvents(host Host) *Observer {
	return New(host, nil)
}

func key(name string) string { return strings.ToLower(name) }

// ShouldUpdate claims name for the caller, blocking while another
// goroutine holds it. When granted it marks the name observed, drops it
// from the orphan set and returns the existing child if the container
// has one. A nil child with a nil error means the caller holds the name
// and should proceed to MayCreate. The wait honours ctx cancellation.
func (o *Observer) ShouldUpdate(ctx context.Context, name string) (types.Child, error) {
	k := key(name)
	for {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return nil, types.ErrCancelled
		}
		gate, held := o.busy[k]
		if !held {
			o.busy[k] = make(chan struct{})
			o.observed[k] = name
			delete(o.orphaned, k)
			o.mu.Unlock()

			child, ok := o.host.Child(name)
			if !ok {
				return nil, nil
			}
			return child, nil
		}
		o.mu.Unlock()

		select {
		case <-gate:
		case <-ctx.Done():
			return nil, types.ErrCancelled
		}
	}
}

// MayCreate reports whether the caller, which must currently hold name
// via ShouldUpdate, may construct a new child under it. It answers
// false when the container already has a child with that name.
func (o *Observer) MayCreate(name string) bool {
	o.mu.Lock()
	_, held := o.busy[key(name)]
	o.mu.Unlock()
	if !held {
		return false
	}
	_, exists := o.host.Child(name)
	return !exists
}

// Created commits a newly constructed child into the container's map.
// It does not invoke the child's OnCreatedFromScratch hook; the caller
// owns that, together with the initial save.
func (o *Observer) Created(c types.Child) error {
	return o.host.AttachChild(c)
}

// Completed releases the busy slot for name. Idempotent within one
// observer lifetime.
func (o *Observer) Completed(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.release(key(name))
}

// release must be called with o.mu held.
func (o *Observer) release(k string) {
	if gate, ok := o.busy[k]; ok {
		close(gate)
		delete(o.busy, k)
	}
}

// Observed returns a copy of the business names seen during this run.
func (o *Observer) Observed() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	names := make([]string, 0, len(o.observed))
	for _, original := range o.observed {
		names = append(names, original)
	}
	sort.Strings(names)
	return names
}

// Orphaned returns a copy of the children present at the start of the
// run that have not been re-observed.
func (o *Observer) Orphaned() map[string]types.Child {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]types.Child, len(o.orphaned))
	for _, c := range o.orphaned {
		out[c.Name()] = c
	}
	return out
}

// Close releases every still-busy name as if Completed had been called
// and unblocks all waiters. Idempotent.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	for k := range o.busy {
		o.release(k)
	}
}
