package queue

import (
	"errors"

	"github.com/fernhill/rookery/pkg/metrics"
)

// ErrDisabled is the reason given when a disabled ancestor blocks
// scheduling.
var ErrDisabled = errors.New("a parent container is disabled")

// DisabledChecker is implemented by tasks whose owner sits in a
// container hierarchy; the gate consults it to walk the parent chain.
type DisabledChecker interface {
	HasDisabledAncestor() bool
}

// Gate blocks dispatch of any task with a disabled ancestor. Tasks
// without hierarchy information pass through.
type Gate struct{}

func (Gate) CanRun(t Task) error {
	d, ok := t.(DisabledChecker)
	if ok && d.HasDisabledAncestor() {
		metrics.QueueBlocked.WithLabelValues("gate").Inc()
		return ErrDisabled
	}
	return nil
}
