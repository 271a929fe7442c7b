package trigger

import (
	"hash/fnv"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernhill/rookery/pkg/log"
	"github.com/fernhill/rookery/pkg/types"
)

const (
	// MinInterval and MaxInterval clamp configured intervals.
	MinInterval = time.Minute
	MaxInterval = 30 * 24 * time.Hour

	// enqueueDelay coalesces triggers firing in the same minute.
	enqueueDelay = 5 * time.Second
	// dispatchSlack compensates for minute-granularity dispatch jitter.
	dispatchSlack = 15 * time.Second
)

var intervalPattern = regexp.MustCompile(`^(\d+)(ms|s|m|h|d)?$`)

var intervalUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
}

// ParseInterval parses a human interval string. A unit-less value is
// minutes. Results are clamped to [1 minute, 30 days].
func ParseInterval(spec string) (time.Duration, error) {
	m := intervalPattern.FindStringSubmatch(spec)
	if m == nil {
		return 0, types.NewUserError("invalid interval %q: want <number>[ms|s|m|h|d]", spec)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, types.NewUserError("invalid interval %q: %v", spec, err)
	}
	unit := intervalUnits["m"]
	if m[2] != "" {
		unit = intervalUnits[m[2]]
	}
	d := time.Duration(n) * unit
	if d < MinInterval {
		return MinInterval, nil
	}
	if d > MaxInterval {
		return MaxInterval, nil
	}
	return d, nil
}

// Owner is the container-side surface a trigger drives.
type Owner interface {
	FullName() string
	// LastTimestamp is when the owner's last computation started. Zero
	// when no computation has ever run; first scheduling is handled at
	// creation time, not by the trigger.
	LastTimestamp() time.Time
	// ScheduleBuild enqueues a computation after delay. False means the
	// owner is disabled or already in flight.
	ScheduleBuild(delay time.Duration, cause types.Cause) bool
}

// Trigger fires a container's computation on a fixed interval.
type Trigger struct {
	owner    Owner
	interval time.Duration
	// offset spreads owners across the check cadence so same-interval
	// containers do not all poll on the same minute.
	offset int
	logger zerolog.Logger
}

// New builds a trigger from an interval spec.
func New(owner Owner, spec string) (*Trigger, error) {
	interval, err := ParseInterval(spec)
	if err != nil {
		return nil, err
	}
	h := fnv.New32a()
	h.Write([]byte(owner.FullName()))
	return &Trigger{
		owner:    owner,
		interval: interval,
		offset:   int(h.Sum32() % 60),
		logger:   log.WithComponent("trigger"),
	}, nil
}

// Interval returns the effective (clamped) interval.
func (t *Trigger) Interval() time.Duration { return t.interval }

// cadence picks how often Run is worth calling for the interval. This
// is purely a polling optimization; calling Run every minute yields the
// same schedule.
func (t *Trigger) cadence() time.Duration {
	switch {
	case t.interval < 5*time.Minute:
		return time.Minute
	case t.interval < 15*time.Minute:
		return 5 * time.Minute
	case t.interval < 30*time.Minute:
		return 15 * time.Minute
	case t.interval < time.Hour:
		return 30 * time.Minute
	case t.interval < 24*time.Hour:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Due reports whether this minute tick should call Run.
func (t *Trigger) Due(now time.Time) bool {
	c := t.cadence()
	if c <= time.Minute {
		return true
	}
	minuteOfDay := now.Hour()*60 + now.Minute()
	step := int(c / time.Minute)
	return (minuteOfDay+t.offset)%step == 0
}

// almostInterval shortens the configured interval to absorb the minute
// tick granularity and the enqueue delay; without it a run would slip
// by one full tick every interval.
func (t *Trigger) almostInterval() time.Duration {
	return t.interval - t.interval/20 - dispatchSlack
}

// Run checks the owner and schedules the next computation when due.
func (t *Trigger) Run(now time.Time) {
	last := t.owner.LastTimestamp()
	if last.IsZero() {
		return
	}
	if now.Sub(last) < t.almostInterval() {
		return
	}
	if !t.owner.ScheduleBuild(enqueueDelay, types.NewTimerCause()) {
		t.logger.Debug().Str("container", t.owner.FullName()).
			Msg("periodic computation not schedulable")
	}
}
