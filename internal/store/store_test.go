package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/activitystore/internal/domain"
	"example.com/activitystore/internal/fslock"
)

var march = time.Date(2024, time.March, 21, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, layout.EnsureDirectories())
	return New(layout, WithLogger(zaptest.NewLogger(t)), WithClock(func() time.Time { return now }))
}

func TestSaveMergesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, march)

	require.True(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a1", 3600)}))

	records, err := s.Load(ctx, "u1", "running", march)
	require.NoError(t, err)
	require.Equal(t, []domain.Record{sampleRecord("a1", 3600)}, records)

	require.True(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a1", 4000)}))

	records, err = s.Load(ctx, "u1", "running", march)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, int64(4000), records[0].DurationSeconds)
}

func TestSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, march)
	batch := []domain.Record{sampleRecord("a1", 3600), sampleRecord("a2", 1800)}

	require.True(t, s.Save(ctx, "u1", "running", batch))
	path, err := s.Layout().PartitionFile("u1", "running", march)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.True(t, s.Save(ctx, "u1", "running", batch))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestSaveKeepsFirstPositionAndAppendsNew(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, march)

	require.True(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a1", 1), sampleRecord("a2", 2)}))
	require.True(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a3", 3), sampleRecord("a1", 10)}))

	records, err := s.Load(ctx, "u1", "running", march)
	require.NoError(t, err)
	require.Equal(t, []domain.Record{sampleRecord("a1", 10), sampleRecord("a2", 2), sampleRecord("a3", 3)}, records)
}

func TestMergeCollapsesDuplicatesWithinBatch(t *testing.T) {
	merged := Merge(nil, []domain.Record{sampleRecord("a1", 1), sampleRecord("a2", 2), sampleRecord("a1", 3)})
	require.Equal(t, []domain.Record{sampleRecord("a1", 3), sampleRecord("a2", 2)}, merged)
}

func TestSaveUsesCurrentMonthPartition(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.July, 2, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	// The record's own date is in March 2024; the partition follows the clock.
	require.True(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a1", 3600)}))

	months, err := s.Months("u1", "running")
	require.NoError(t, err)
	require.Equal(t, []time.Time{time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)}, months)
}

func TestSaveIsolatesUsersAndTypes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, march)

	require.True(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a1", 1)}))
	require.True(t, s.Save(ctx, "u2", "running", []domain.Record{sampleRecord("a1", 2)}))
	require.True(t, s.Save(ctx, "u1", "cycling", []domain.Record{sampleRecord("a1", 3)}))

	for _, tc := range []struct {
		user, typ string
		duration  int64
	}{{"u1", "running", 1}, {"u2", "running", 2}, {"u1", "cycling", 3}} {
		records, err := s.Load(ctx, tc.user, tc.typ, march)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, tc.duration, records[0].DurationSeconds)
	}
}

func TestSaveReportsFailure(t *testing.T) {
	s := newTestStore(t, march)
	before := testutil.ToFloat64(saveCounter.WithLabelValues("failure"))

	require.False(t, s.Save(context.Background(), "../etc", "running", []domain.Record{sampleRecord("a1", 1)}))
	require.Equal(t, before+1, testutil.ToFloat64(saveCounter.WithLabelValues("failure")))
}

func TestSaveFailsOnCorruptPartition(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, march)
	path, err := s.Layout().PartitionPath("u1", "running", march)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("not,a,partition\n1,2,3\n"), 0o600))

	require.False(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a1", 1)}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "not,a,partition\n1,2,3\n", string(data))
}

func TestSaveConcurrentWritersLoseNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, march)
	before := testutil.ToFloat64(saveCounter.WithLabelValues("success"))

	const writers = 16
	var wg sync.WaitGroup
	results := make([]bool, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Save(ctx, "u1", "running", []domain.Record{sampleRecord(fmt.Sprintf("a%02d", i), int64(i))})
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		require.True(t, ok, "writer %d", i)
	}
	records, err := s.Load(ctx, "u1", "running", march)
	require.NoError(t, err)
	require.Len(t, records, writers)
	require.Equal(t, 0, s.locks.size())
	require.Equal(t, before+writers, testutil.ToFloat64(saveCounter.WithLabelValues("success")))
}

func TestSaveSerialisesWritersAcrossStoreInstances(t *testing.T) {
	ctx := context.Background()
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, layout.EnsureDirectories())
	clock := WithClock(func() time.Time { return march })
	stores := []*Store{New(layout, clock), New(layout, clock)}

	const perStore = 6
	var wg sync.WaitGroup
	results := make([]bool, len(stores)*perStore)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := stores[i%len(stores)]
			results[i] = s.Save(ctx, "u1", "running", []domain.Record{sampleRecord(fmt.Sprintf("a%02d", i), int64(i))})
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		require.True(t, ok, "writer %d", i)
	}
	records, err := stores[0].Load(ctx, "u1", "running", march)
	require.NoError(t, err)
	require.Len(t, records, len(results))

	months, err := stores[1].Months("u1", "running")
	require.NoError(t, err)
	require.Equal(t, []time.Time{time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)}, months)
}

func TestSaveWaitsForPartitionLockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, march)
	path, err := s.Layout().PartitionPath("u1", "running", march)
	require.NoError(t, err)

	held, err := fslock.Acquire(ctx, PartitionLockPath(path), time.Second)
	require.NoError(t, err)

	s.lockTimeout = 150 * time.Millisecond
	require.False(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a1", 1)}))

	require.NoError(t, held.Release())
	require.True(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a1", 1)}))
}

func TestIsLockFile(t *testing.T) {
	require.True(t, IsLockFile(filepath.Base(PartitionLockPath("/data/users/user_u1/running/202403.csv"))))
	require.False(t, IsLockFile("202403.csv"))
	require.False(t, IsLockFile(".202403.csv.abc.tmp"))
}

func TestLoadMissingPartitionIsEmpty(t *testing.T) {
	s := newTestStore(t, march)

	records, err := s.Load(context.Background(), "nobody", "running", march)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestSaveHonoursCancelledContext(t *testing.T) {
	s := newTestStore(t, march)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(t, s.Save(ctx, "u1", "running", []domain.Record{sampleRecord("a1", 1)}))
}

func TestOpenPreparesTreeFromConfig(t *testing.T) {
	base := filepath.Join(t.TempDir(), "data")

	s, err := Open(Config{BasePath: base, LockTimeout: 5 * time.Second}, WithClock(func() time.Time { return march }))
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, s.lockTimeout)

	for _, dir := range []string{s.Layout().UsersDir(), s.Layout().BackupsDir(), s.Layout().TempDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
	require.True(t, s.Save(context.Background(), "u1", "running", []domain.Record{sampleRecord("a1", 1)}))

	_, err = Open(Config{BasePath: " "})
	require.Error(t, err)
}
