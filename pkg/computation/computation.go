package computation

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fernhill/rookery/pkg/log"
	"github.com/fernhill/rookery/pkg/metrics"
	"github.com/fernhill/rookery/pkg/types"
)

// Owner is the container-side surface a computation drives. The
// container implements the reconciliation itself; the computation only
// frames it with the log, the timing and the terminal result.
type Owner interface {
	FullName() string
	RootDir() string
	// UpdateChildren performs the reconciliation: compute the desired
	// child set, apply the diff and run orphan retention. A cancelled
	// context or a wrapped ErrCancelled turns the run into ABORTED; any
	// other error into FAILURE.
	UpdateChildren(ctx context.Context, l *Listener) error
}

// Options tunes one computation.
type Options struct {
	// BackupLogCount is the number of rotated computation.log backups to
	// retain. Zero disables rotation.
	BackupLogCount int
	// History receives the run's duration. Shared per container.
	History *History
	// OnDone fires after the terminal result is observable.
	OnDone func(*Computation)
}

// Computation is a single reconciliation run: a schedulable task while
// pending, a persistent record once done. The result stays unset while
// the run is live; LogUpdated is the canonical liveness signal.
type Computation struct {
	id             string
	owner          Owner
	cause          types.Cause
	previousResult types.Result
	opts           Options
	logger         zerolog.Logger

	mu        sync.Mutex
	timestamp time.Time
	duration  time.Duration

	result     atomic.Pointer[types.Result]
	abortCause atomic.Pointer[types.Cause]
}

// New prepares a run for the owner. previous carries the result of the
// owner's prior computation, if any.
func New(owner Owner, cause types.Cause, previous types.Result, opts Options) *Computation {
	id := uuid.New().String()
	return &Computation{
		id:             id,
		owner:          owner,
		cause:          cause,
		previousResult: previous,
		opts:           opts,
		logger:         log.WithComputation(id).With().Str("container", owner.FullName()).Logger(),
	}
}

// ID is the run's unique identifier.
func (c *Computation) ID() string { return c.id }

// Dir returns the owner's computation state directory.
func (c *Computation) Dir() string {
	return filepath.Join(c.owner.RootDir(), DirName)
}

// Cause reports why this run was scheduled.
func (c *Computation) Cause() types.Cause { return c.cause }

// PreviousResult returns the outcome of the owner's prior run, or
// NOT_BUILT when there was none.
func (c *Computation) PreviousResult() types.Result { return c.previousResult }

// Result returns the terminal outcome once the run is done.
func (c *Computation) Result() (types.Result, bool) {
	if p := c.result.Load(); p != nil {
		return *p, true
	}
	return types.ResultNotBuilt, false
}

// LogUpdated reports whether the run is still live, which is exactly
// when the log should be served as streaming rather than sealed.
func (c *Computation) LogUpdated() bool {
	return c.result.Load() == nil
}

// Timestamp returns when the run started.
func (c *Computation) Timestamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestamp
}

// Duration returns how long the run took. Zero while live.
func (c *Computation) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Log opens the primary run log for reading. Absent files read as the
// placeholder text, never as an error.
func (c *Computation) Log() io.ReadCloser {
	return OpenLog(filepath.Join(c.Dir(), LogFile))
}

// Interrupt records why the run is being cancelled; the log then names
// the instigator instead of a bare abort. The actual cancellation
// travels through the run's context.
func (c *Computation) Interrupt(cause types.Cause) {
	c.abortCause.Store(&cause)
}

// Run executes the reconciliation start to finish on the calling
// goroutine. It never panics outward and never returns an error; the
// outcome is recorded on the computation itself.
func (c *Computation) Run(ctx context.Context) {
	dir := c.Dir()

	l, err := OpenListener(dir, c.opts.BackupLogCount)
	if err != nil {
		c.logger.Warn().Err(err).Msg("running without a computation log")
		l = newDiscardListener()
	}

	start := time.Now()
	c.mu.Lock()
	c.timestamp = start
	c.mu.Unlock()

	metrics.ComputationsRunning.Inc()
	outcome := c.execute(ctx, l)
	metrics.ComputationsRunning.Dec()

	d := time.Since(start)
	c.mu.Lock()
	c.duration = d
	c.mu.Unlock()
	if c.opts.History != nil {
		c.opts.History.Add(d)
	}

	// Seal the log before the result becomes observable: a visible
	// result implies a complete log.
	l.Close()

	res := outcome
	c.result.Store(&res)

	metrics.ComputationsTotal.WithLabelValues(string(res)).Inc()
	metrics.ComputationDuration.Observe(d.Seconds())
	c.logger.Info().Str("result", string(res)).Dur("duration", d).Msg("computation finished")

	if err := c.persistRecord(dir, res, start, d); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist computation record")
	}

	if c.opts.OnDone != nil {
		c.opts.OnDone(c)
	}
}

// execute runs the owner's reconciliation and maps its outcome. A panic
// is written to the log verbatim and becomes FAILURE; it is never
// rethrown to the host.
func (c *Computation) execute(ctx context.Context, l *Listener) (out types.Result) {
	defer func() {
		if r := recover(); r != nil {
			l.Logf("unexpected error: %v", r)
			l.Write(debug.Stack())
			c.logger.Error().Interface("panic", r).Msg("computation panicked")
			out = types.ResultFailure
		}
	}()

	err := c.owner.UpdateChildren(ctx, l)
	switch {
	case err == nil:
		return types.ResultSuccess
	case types.IsCancelled(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if cause := c.abortCause.Load(); cause != nil && cause.Kind == types.CauseOrphanedParent {
			l.Logf("Aborted: parent container %s was deleted", cause.Origin)
		} else {
			l.Logf("Aborted")
		}
		return types.ResultAborted
	default:
		l.Logf("failed to update children: %v", err)
		return types.ResultFailure
	}
}
