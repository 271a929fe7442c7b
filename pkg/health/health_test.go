package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernhill/rookery/pkg/telemetry"
	"github.com/fernhill/rookery/pkg/types"
)

func seededReporter(t *testing.T) (*Reporter, *telemetry.Store) {
	t.Helper()
	store, err := telemetry.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewReporter(store, 60), store
}

func record(t *testing.T, store *telemetry.Store, name string, at time.Time, res types.Result) {
	t.Helper()
	require.NoError(t, store.RecordRun(name, telemetry.RunRecord{
		Timestamp:  at.UnixMilli(),
		DurationMS: 1000,
		Result:     res,
	}))
}

func TestReportFromHistory(t *testing.T) {
	r, store := seededReporter(t)

	base := time.Now().Add(-time.Hour)
	record(t, store, "org/repo", base, types.ResultSuccess)
	record(t, store, "org/repo", base.Add(time.Minute), types.ResultFailure)
	record(t, store, "org/repo", base.Add(2*time.Minute), types.ResultSuccess)
	record(t, store, "org/repo", base.Add(3*time.Minute), types.ResultSuccess)

	rep, err := r.Report("org/repo")
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Runs)
	assert.Equal(t, 1, rep.Failures)
	assert.Equal(t, types.ResultSuccess, rep.LastResult)
	assert.Equal(t, base.Add(3*time.Minute).UnixMilli(), rep.LastRun.UnixMilli())
	assert.InDelta(t, 0.75, rep.SuccessRatio, 1e-9)
	assert.True(t, rep.Healthy())
}

func TestReportEmptyHistory(t *testing.T) {
	r, _ := seededReporter(t)

	rep, err := r.Report("never-ran")
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Runs)
	assert.Equal(t, types.ResultNotBuilt, rep.LastResult)
	assert.False(t, rep.Healthy())
}

func TestReportCached(t *testing.T) {
	r, store := seededReporter(t)
	record(t, store, "org/repo", time.Now(), types.ResultSuccess)

	first, err := r.Report("org/repo")
	require.NoError(t, err)

	// New runs land but the cached report holds until invalidated.
	record(t, store, "org/repo", time.Now(), types.ResultFailure)
	cached, err := r.Report("org/repo")
	require.NoError(t, err)
	assert.Equal(t, first.Runs, cached.Runs)
	assert.Equal(t, first.GeneratedAt, cached.GeneratedAt)

	r.Invalidate("org/repo")
	fresh, err := r.Report("org/repo")
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Runs)
	assert.Equal(t, types.ResultFailure, fresh.LastResult)
}

func TestJitterWithinSecondHalf(t *testing.T) {
	r, _ := seededReporter(t)

	for i := 0; i < 1000; i++ {
		ttl := r.jitterTTL()
		assert.GreaterOrEqual(t, ttl, r.ttl/2)
		assert.LessOrEqual(t, ttl, r.ttl)
	}
}
