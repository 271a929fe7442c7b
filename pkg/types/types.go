package types

import (
	"context"
	"time"
)

// Result is the terminal outcome of a computation.
type Result string

const (
	ResultSuccess  Result = "SUCCESS"
	ResultUnstable Result = "UNSTABLE"
	ResultFailure  Result = "FAILURE"
	ResultNotBuilt Result = "NOT_BUILT"
	ResultAborted  Result = "ABORTED"
)

// severity orders results from best to worst for WorseThan comparisons.
var severity = map[Result]int{
	ResultSuccess:  0,
	ResultUnstable: 1,
	ResultFailure:  2,
	ResultNotBuilt: 3,
	ResultAborted:  4,
}

// WorseThan reports whether r is a worse outcome than other.
func (r Result) WorseThan(other Result) bool {
	return severity[r] > severity[other]
}

// ParseResult maps a stored string back to a Result. Unknown strings
// come back as NOT_BUILT so old records never fail a load.
func ParseResult(s string) Result {
	r := Result(s)
	if _, ok := severity[r]; !ok {
		return ResultNotBuilt
	}
	return r
}

// CauseKind identifies who requested a computation.
type CauseKind string

const (
	CauseTimerTrigger   CauseKind = "timer"
	CauseUserRequest    CauseKind = "user"
	CauseEvent          CauseKind = "event"
	CauseOrphanedParent CauseKind = "orphaned-parent"
)

// Cause records why a computation was scheduled.
type Cause struct {
	Kind CauseKind `json:"kind"`
	// Origin is the full name of the container or principal that asked
	// for the run. For OrphanedParent causes it names the container whose
	// deletion triggered the cancellation.
	Origin string `json:"origin,omitempty"`
	Note   string `json:"note,omitempty"`
}

// NewTimerCause is the cause attached by periodic triggers.
func NewTimerCause() Cause {
	return Cause{Kind: CauseTimerTrigger}
}

// NewOrphanedParentCause notifies an interrupted run that an ancestor
// was deleted.
func NewOrphanedParentCause(fullName string) Cause {
	return Cause{Kind: CauseOrphanedParent, Origin: fullName}
}

// Group is the view of a container that the naming and storage layers
// need: a stable full name and an on-disk root.
type Group interface {
	// FullName returns the slash-delimited path of the container.
	FullName() string
	// RootDir returns the container's on-disk root directory.
	RootDir() string
}

// Child is a single computed entry owned by a container. The host
// platform owns the child's configuration blob; the core only needs the
// business name and the load/save hooks.
type Child interface {
	// Name returns the stable business name, or "" if not yet attached.
	Name() string
	// SetName attaches a recovered business name without persisting.
	SetName(name string)
	// OnLoad is called after the child has been read from disk.
	OnLoad(parent Group, dirName string) error
	// OnCreatedFromScratch is called exactly once for brand-new children,
	// before they are added to the parent's map.
	OnCreatedFromScratch()
	// Save persists the child's configuration to its root directory.
	Save() error
}

// Buildable is an optional capability of a child that runs builds.
// Children without it have a last build time of zero and are never
// considered in progress.
type Buildable interface {
	LastBuildTime() time.Time
	Building() bool
}

// Pinned is an optional capability marking a child with a kept build
// that retention must never delete.
type Pinned interface {
	HasKeptBuild() bool
}

// Deletable is an optional capability for children that own a subtree
// of their own (nested containers) and must cascade on delete.
type Deletable interface {
	Delete(ctx context.Context) error
}

// LastBuild returns the child's last build time, or the zero time when
// the child is not buildable.
func LastBuild(c Child) time.Time {
	if b, ok := c.(Buildable); ok {
		return b.LastBuildTime()
	}
	return time.Time{}
}
