package container

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernhill/rookery/pkg/computation"
	"github.com/fernhill/rookery/pkg/eventlog"
	"github.com/fernhill/rookery/pkg/events"
	"github.com/fernhill/rookery/pkg/log"
	"github.com/fernhill/rookery/pkg/metrics"
	"github.com/fernhill/rookery/pkg/naming"
	"github.com/fernhill/rookery/pkg/observer"
	"github.com/fernhill/rookery/pkg/orphan"
	"github.com/fernhill/rookery/pkg/queue"
	"github.com/fernhill/rookery/pkg/store"
	"github.com/fernhill/rookery/pkg/telemetry"
	"github.com/fernhill/rookery/pkg/trigger"
	"github.com/fernhill/rookery/pkg/types"
)

const (
	// stopGrace is how long a delete cascade waits for interrupted runs.
	stopGrace = 15 * time.Second
	// stopPoll is the cascade's polling interval while waiting.
	stopPoll = 50 * time.Millisecond
)

// ComputeFunc produces the desired child set for one run. All child
// access goes through the observer; output may be streamed to the
// listener. Implementations belong to the concrete container type.
type ComputeFunc func(ctx context.Context, obs *observer.Observer, l *computation.Listener) error

// UpdateExistingFunc merges a freshly computed replacement into an
// existing child. Optional.
type UpdateExistingFunc func(existing, replacement types.Child)

// Options wires a container into the host services.
type Options struct {
	Mangler  naming.Mangler
	Strategy orphan.Strategy
	Queue    *queue.Queue
	// Telemetry, when set, receives a run record per finished
	// computation and is cleared on delete.
	Telemetry *telemetry.Store
	// Broker, when set, receives lifecycle events.
	Broker  *events.Broker
	Factory store.Factory

	Compute        ComputeFunc
	UpdateExisting UpdateExistingFunc

	BackupLogCount    int
	EventLogMaxSizeKB int
}

// Container is one computed container node.
type Container struct {
	name    string
	parent  *Container
	rootDir string
	opts    Options

	store    *store.Store
	children *ChildMap
	history  *computation.History
	logger   zerolog.Logger

	mu            sync.Mutex
	disabled      bool
	deleted       bool
	current       *computation.Computation
	lastTimestamp time.Time
	previous      types.Result
	triggers      []*trigger.Trigger
	eventLog      *eventlog.Writer
}

// New builds a container rooted at rootDir. parent is nil for roots.
func New(name string, parent *Container, rootDir string, opts Options) *Container {
	if opts.Mangler == nil {
		opts.Mangler = naming.Default{}
	}
	if opts.Strategy == nil {
		opts.Strategy = orphan.KeepAll{}
	}
	c := &Container{
		name:     name,
		parent:   parent,
		rootDir:  rootDir,
		opts:     opts,
		children: NewChildMap(),
		history:  &computation.History{},
		previous: types.ResultNotBuilt,
	}
	c.store = store.New(opts.Mangler, opts.Factory)
	c.logger = log.WithContainer(c.FullName())
	return c
}

// Name returns the container's own segment.
func (c *Container) Name() string { return c.name }

// FullName returns the slash-delimited path from the root.
func (c *Container) FullName() string {
	if c.parent == nil {
		return c.name
	}
	return c.parent.FullName() + "/" + c.name
}

// RootDir returns the container's on-disk root.
func (c *Container) RootDir() string { return c.rootDir }

// Key implements queue.Task.
func (c *Container) Key() string { return c.FullName() }

// Load reads the children from disk and restores the last run record.
func (c *Container) Load() error {
	children, err := c.store.Load(c)
	if err != nil {
		return err
	}
	c.children.Replace(children)

	rec, ok, err := computation.LoadRecord(filepath.Join(c.rootDir, computation.DirName))
	if err != nil {
		c.logger.Warn().Err(err).Msg("ignoring unreadable computation record")
		return nil
	}
	if ok {
		c.mu.Lock()
		c.lastTimestamp = rec.Start()
		c.previous = types.ParseResult(rec.Result)
		c.mu.Unlock()
		c.history.Restore(rec.Durations())
	}
	return nil
}

// Child implements observer.Host.
func (c *Container) Child(name string) (types.Child, bool) {
	return c.children.Get(name)
}

// AttachChild commits a newly created child: the from-scratch hook
// fires, the child is saved and its sidecar written, then it joins the
// map. Implements observer.Host.
func (c *Container) AttachChild(child types.Child) error {
	name := child.Name()
	if name == "" {
		return types.NewUserError("child has no business name")
	}
	if _, exists := c.children.Get(name); exists {
		return types.NewUserError("a child named %q already exists", name)
	}

	child.OnCreatedFromScratch()
	if _, err := c.store.ChildRootDir(c, child); err != nil {
		return err
	}
	if err := child.Save(); err != nil {
		return fmt.Errorf("failed to save new child %q: %w", name, err)
	}
	if err := c.store.PersistChild(c, child); err != nil {
		return err
	}
	c.children.Put(child)
	c.publish(events.EventChildCreated, name, "")
	return nil
}

// publish emits a lifecycle event when a broker is wired.
func (c *Container) publish(t events.EventType, child, message string) {
	if c.opts.Broker == nil {
		return
	}
	c.opts.Broker.Publish(&events.Event{
		Type:      t,
		Container: c.FullName(),
		Child:     child,
		Message:   message,
	})
}

// Children returns a snapshot of the child map by business name.
func (c *Container) Children() map[string]types.Child {
	return c.children.Snapshot()
}

// Store exposes the container's child store for host factories.
func (c *Container) Store() *store.Store { return c.store }

// Disabled reports the container's own disable flag; it is shallow and
// does not consult ancestors.
func (c *Container) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// SetDisabled flips the disable flag. Children are untouched; the
// queue gate keeps anything below from being scheduled.
func (c *Container) SetDisabled(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = disabled
}

// HasDisabledAncestor walks the parent chain, self included.
// Implements the queue gate's check.
func (c *Container) HasDisabledAncestor() bool {
	for p := c; p != nil; p = p.parent {
		if p.Disabled() {
			return true
		}
	}
	return false
}

// ScheduleBuild enqueues a computation to dispatch after delay. False
// when the container is disabled, deleted or already running.
func (c *Container) ScheduleBuild(delay time.Duration, cause types.Cause) bool {
	c.mu.Lock()
	blocked := c.disabled || c.deleted
	c.mu.Unlock()
	if blocked || c.opts.Queue == nil {
		return false
	}
	return c.opts.Queue.Schedule(c, delay, cause)
}

// CreateExecutable builds the run for a dispatching queue item and
// makes it the container's current computation. Implements queue.Task.
func (c *Container) CreateExecutable(cause types.Cause) (queue.Executable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleted {
		return nil, types.NewUserError("container %q is deleted", c.FullName())
	}

	prev := c.previous
	if c.current != nil {
		if res, done := c.current.Result(); done {
			prev = res
		}
	}
	comp := computation.New(c, cause, prev, computation.Options{
		BackupLogCount: c.opts.BackupLogCount,
		History:        c.history,
		OnDone:         c.onComputationDone,
	})
	c.current = comp
	c.lastTimestamp = time.Now()
	return comp, nil
}

func (c *Container) onComputationDone(comp *computation.Computation) {
	res, _ := comp.Result()
	c.mu.Lock()
	c.previous = res
	c.lastTimestamp = comp.Timestamp()
	c.mu.Unlock()

	if c.opts.Telemetry != nil {
		err := c.opts.Telemetry.RecordRun(c.FullName(), telemetry.RunRecord{
			Timestamp:  comp.Timestamp().UnixMilli(),
			DurationMS: comp.Duration().Milliseconds(),
			Result:     res,
		})
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to record run telemetry")
		}
	}
	c.publish(events.EventComputationFinished, "", string(res))
}

// Computation returns the latest run, which may still be live.
func (c *Container) Computation() *computation.Computation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// LastTimestamp implements trigger.Owner: when the last computation
// started, zero if none ever has.
func (c *Container) LastTimestamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTimestamp
}

// EstimatedDuration is the mean of the recent run durations, -1 before
// the first finished run.
func (c *Container) EstimatedDuration() time.Duration {
	return c.history.Estimated()
}

// UpdateChildren performs one reconciliation. Implements
// computation.Owner; the computation frames this with log and result
// handling.
func (c *Container) UpdateChildren(ctx context.Context, l *computation.Listener) error {
	if c.opts.Compute == nil {
		return nil
	}

	obs := observer.New(c, c.children.Snapshot())
	defer obs.Close()

	if err := c.opts.Compute(ctx, obs, l); err != nil {
		return err
	}
	c.applyRetention(ctx, obs, l)
	return nil
}

// applyRetention hands the run's leftover orphans to the strategy and
// deletes its selection. Per-child failures are logged and skipped.
func (c *Container) applyRetention(ctx context.Context, obs *observer.Observer, l *computation.Listener) {
	orphaned := obs.Orphaned()
	if len(orphaned) == 0 {
		return
	}
	candidates := make([]types.Child, 0, len(orphaned))
	for _, child := range orphaned {
		candidates = append(candidates, child)
	}

	for _, child := range c.opts.Strategy.Select(candidates, time.Now(), c.logger) {
		if err := c.deleteChild(ctx, child); err != nil {
			c.logger.Warn().Err(err).Str("child", child.Name()).Msg("failed to delete orphan")
			l.Logf("failed to delete orphan %s: %v", child.Name(), err)
			continue
		}
		l.Logf("deleted orphan %s", child.Name())
		metrics.OrphansDeleted.Inc()
	}
}

// deleteChild removes one child: cascades when the child owns a
// subtree, then removes its directory and map entry.
func (c *Container) deleteChild(ctx context.Context, child types.Child) error {
	if d, ok := child.(types.Deletable); ok {
		if err := d.Delete(ctx); err != nil {
			return err
		}
	}
	if dirName, ok := c.opts.Mangler.DirName(c, child); ok {
		dir := filepath.Join(c.rootDir, store.JobsDir, dirName)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove child directory: %w", err)
		}
	}
	c.children.Remove(child.Name())
	c.publish(events.EventChildDeleted, child.Name(), "")
	return nil
}

// UpdateExistingItem merges a computed replacement into an existing
// child via the host hook. Without a hook the existing child is kept
// as is.
func (c *Container) UpdateExistingItem(existing, replacement types.Child) {
	if c.opts.UpdateExisting != nil {
		c.opts.UpdateExisting(existing, replacement)
	}
}

// OnDeleted removes a child from the map without cascading.
func (c *Container) OnDeleted(child types.Child) {
	c.children.Remove(child.Name())
}

// OnRenamed rejects child renames: computed children are owned by the
// reconciliation, not the user. Renaming the container itself is the
// host's business.
func (c *Container) OnRenamed(oldName, newName string) error {
	return fmt.Errorf("cannot rename child %q of a computed container: %w",
		oldName, errors.ErrUnsupported)
}

// OpenEventsChildObserver returns an observer for out-of-band event
// handlers. Its orphan set stays empty, so events never trigger
// retention.
func (c *Container) OpenEventsChildObserver() *observer.Observer {
	return observer.NewForEvents(c)
}

// EventLog returns the container's out-of-band event log, opened
// lazily. Writes after delete are dropped by the target hook.
func (c *Container) EventLog() *eventlog.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eventLog == nil {
		rotate := int64(c.opts.EventLogMaxSizeKB) * 1024
		c.eventLog = eventlog.NewWriter(c.eventLogTarget, eventlog.Options{
			RotateSize: rotate,
			FileCount:  1,
		})
	}
	return c.eventLog
}

func (c *Container) eventLogTarget() (string, bool) {
	c.mu.Lock()
	deleted := c.deleted
	c.mu.Unlock()
	if deleted {
		return "", false
	}
	dir := filepath.Join(c.rootDir, computation.DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", false
	}
	return filepath.Join(dir, "events.log"), true
}

// AddPeriodicTrigger attaches a timer trigger from an interval spec.
func (c *Container) AddPeriodicTrigger(spec string) (*trigger.Trigger, error) {
	tr, err := trigger.New(c, spec)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.triggers = append(c.triggers, tr)
	c.mu.Unlock()
	return tr, nil
}

// Triggers snapshots the attached triggers for the cron loop.
func (c *Container) Triggers() []*trigger.Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*trigger.Trigger(nil), c.triggers...)
}

// Delete cascades: pending queue items for this container and every
// descendant are swept, running builds are interrupted with an
// orphaned-parent cause and given a grace window to stop, then
// descendants are deleted depth-first and the directory removed.
func (c *Container) Delete(ctx context.Context) error {
	c.mu.Lock()
	if c.deleted {
		c.mu.Unlock()
		return nil
	}
	c.deleted = true
	evl := c.eventLog
	c.mu.Unlock()

	full := c.FullName()
	if q := c.opts.Queue; q != nil {
		q.CancelPrefix(full)
		q.InterruptPrefix(full, types.NewOrphanedParentCause(full))

		deadline := time.Now().Add(stopGrace)
		for q.RunningPrefix(full) > 0 {
			if time.Now().After(deadline) {
				return fmt.Errorf("failed to stop builds")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(stopPoll):
			}
		}
	}

	for name, child := range c.children.Snapshot() {
		if d, ok := child.(types.Deletable); ok {
			if err := d.Delete(ctx); err != nil {
				c.logger.Warn().Err(err).Str("child", name).Msg("failed to delete descendant")
			}
		}
		c.children.Remove(name)
	}

	if evl != nil {
		evl.Close()
	}
	if c.opts.Telemetry != nil {
		if err := c.opts.Telemetry.Forget(full); err != nil {
			c.logger.Warn().Err(err).Msg("failed to clear run telemetry")
		}
	}
	if err := os.RemoveAll(c.rootDir); err != nil {
		return fmt.Errorf("failed to remove container directory: %w", err)
	}
	if c.parent != nil {
		c.parent.children.Remove(c.name)
	}
	c.publish(events.EventContainerDeleted, "", "")
	c.logger.Info().Msg("container deleted")
	return nil
}

// Deleted reports whether the cascade has run.
func (c *Container) Deleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleted
}
