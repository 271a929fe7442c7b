package throttle

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRunning(n int) func() int {
	return func() int { return n }
}

func TestAdmitsUpToLimit(t *testing.T) {
	th := New(2, fixedRunning(0))

	assert.NoError(t, th.CanRun("a"))
	assert.NoError(t, th.CanRun("b"))
	assert.ErrorIs(t, th.CanRun("c"), ErrBlocked)
}

func TestRunningCountsAgainstLimit(t *testing.T) {
	th := New(3, fixedRunning(2))

	assert.NoError(t, th.CanRun("a"))
	assert.ErrorIs(t, th.CanRun("b"), ErrBlocked)
}

func TestFullyBusyBlocksNewcomers(t *testing.T) {
	th := New(2, fixedRunning(2))
	assert.ErrorIs(t, th.CanRun("a"), ErrBlocked)
}

func TestRepeatChecksDoNotDoubleCount(t *testing.T) {
	th := New(2, fixedRunning(0))

	require.NoError(t, th.CanRun("a"))
	// The queue re-asks about the same item; its reservation holds and
	// consumes no extra slot.
	require.NoError(t, th.CanRun("a"))
	require.NoError(t, th.CanRun("a"))

	assert.NoError(t, th.CanRun("b"))
	assert.ErrorIs(t, th.CanRun("c"), ErrBlocked)
}

func TestApprovedItemSurvivesFullLoad(t *testing.T) {
	running := 0
	th := New(2, func() int { return running })

	require.NoError(t, th.CanRun("a"))
	running = 2

	// Already reserved within the window: still admitted.
	assert.NoError(t, th.CanRun("a"))
	assert.ErrorIs(t, th.CanRun("b"), ErrBlocked)
}

func TestReservationsExpire(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	th := New(1, fixedRunning(0))
	th.now = func() time.Time { return now }

	require.NoError(t, th.CanRun("a"))
	assert.ErrorIs(t, th.CanRun("b"), ErrBlocked)

	now = now.Add(window + time.Millisecond)
	assert.NoError(t, th.CanRun("b"))
}

func TestBurstAdmissionBounded(t *testing.T) {
	// Five containers arrive at once with limit 2 and nothing running:
	// exactly two pass, the rest wait in the queue.
	th := New(2, fixedRunning(0))

	admitted := 0
	for i := 0; i < 5; i++ {
		if th.CanRun(fmt.Sprintf("c%d", i)) == nil {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
}

func TestBlockedItemAdmittedAfterCapacityFrees(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	running := 2
	th := New(2, func() int { return running })
	th.now = func() time.Time { return now }

	require.ErrorIs(t, th.CanRun("a"), ErrBlocked)

	running = 1
	now = now.Add(2 * time.Second)
	assert.NoError(t, th.CanRun("a"))
}
