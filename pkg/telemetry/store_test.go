package telemetry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernhill/rookery/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndHistory(t *testing.T) {
	s := openStore(t)

	base := time.Now().UnixMilli()
	for i := 0; i < 3; i++ {
		err := s.RecordRun("org/repo", RunRecord{
			Timestamp:  base + int64(i*1000),
			DurationMS: int64(100 + i),
			Result:     types.ResultSuccess,
		})
		require.NoError(t, err)
	}

	runs, err := s.History("org/repo", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Newest first.
	assert.Equal(t, base+2000, runs[0].Timestamp)
	assert.Equal(t, base, runs[2].Timestamp)
}

func TestHistoryLimit(t *testing.T) {
	s := openStore(t)

	base := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun("c", RunRecord{Timestamp: base + int64(i), Result: types.ResultSuccess}))
	}

	runs, err := s.History("c", 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, base+4, runs[0].Timestamp)
}

func TestHistoryUnknownContainer(t *testing.T) {
	s := openStore(t)

	runs, err := s.History("never-seen", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLastRun(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.LastRun("c")
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Now().UnixMilli()
	require.NoError(t, s.RecordRun("c", RunRecord{Timestamp: base, Result: types.ResultFailure}))

	rec, ok, err := s.LastRun("c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.ResultFailure, rec.Result)
	assert.Equal(t, base, rec.StartOf().UnixMilli())
}

func TestRetentionCap(t *testing.T) {
	s := openStore(t)

	base := time.Now().UnixMilli()
	for i := 0; i < maxRunsPerContainer+20; i++ {
		require.NoError(t, s.RecordRun("c", RunRecord{Timestamp: base + int64(i), Result: types.ResultSuccess}))
	}

	runs, err := s.History("c", 0)
	require.NoError(t, err)
	assert.Len(t, runs, maxRunsPerContainer)

	// The survivors are the newest entries.
	assert.Equal(t, base+int64(maxRunsPerContainer+19), runs[0].Timestamp)
}

func TestForget(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.RecordRun("c", RunRecord{Timestamp: 1, Result: types.ResultSuccess}))
	require.NoError(t, s.Forget("c"))
	require.NoError(t, s.Forget("c")) // absent is fine

	runs, err := s.History("c", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestIsolationBetweenContainers(t *testing.T) {
	s := openStore(t)

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("c%d", i)
		require.NoError(t, s.RecordRun(name, RunRecord{Timestamp: int64(i + 1), Result: types.ResultSuccess}))
	}

	runs, err := s.History("c1", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(2), runs[0].Timestamp)
}
