// Package store persists activity records as per-user, per-activity-type,
// monthly CSV partitions with merge-on-write.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"example.com/activitystore/internal/domain"
	"example.com/activitystore/internal/fslock"
	"example.com/activitystore/internal/observability"
)

const (
	defaultLockTimeout = 30 * time.Second
	lockFileExt        = ".lock"
)

// Option configures optional behaviour for the Store.
type Option func(*Store)

// WithLogger overrides the logger used to report failed writes.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the clock used to pick the current partition month.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLockTimeout bounds the wait for another process's merge into the same
// partition.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.lockTimeout = timeout
		}
	}
}

// Store is the Writer of the partitioned activity store. Merges into the same
// partition are serialised within the process by a mutex and across
// processes by a lock file next to the partition; distinct partitions
// proceed concurrently.
type Store struct {
	layout      Layout
	locks       *partitionLocks
	lockTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// New constructs a Store over layout.
func New(layout Layout, opts ...Option) *Store {
	s := &Store{
		layout:      layout,
		locks:       newPartitionLocks(),
		lockTimeout: defaultLockTimeout,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Layout returns the on-disk layout the store writes into.
func (s *Store) Layout() Layout {
	return s.layout
}

// Save merges records into the current month's partition for the user and
// activity type. Records whose identity already exists replace the stored
// row. It reports false on any failure, in which case nothing is guaranteed
// about what was persisted and the caller may retry.
func (s *Store) Save(ctx context.Context, userID, activityType string, records []domain.Record) bool {
	start := time.Now()
	logger := s.logger.With(
		zap.String("user_id", userID),
		zap.String("activity_type", activityType),
		zap.String("operation", "save"),
	)

	path, rows, err := s.save(ctx, userID, activityType, records)
	recordSave(start, len(records), rows, err)
	if err != nil {
		logger.Error("failed to save activity data", zap.String("path", path), zap.Int("incoming", len(records)), zap.Error(err))
		return false
	}

	observability.RecordPartitionWritten(s.now())
	logger.Info("saved activity data", zap.String("path", path), zap.Int("incoming", len(records)), zap.Int("rows", rows))
	return true
}

func (s *Store) save(ctx context.Context, userID, activityType string, records []domain.Record) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	path, err := s.layout.PartitionPath(userID, activityType, s.now().UTC())
	if err != nil {
		return "", 0, fmt.Errorf("resolve partition: %w", err)
	}

	release := s.locks.lock(path)
	defer release()

	fileLock, err := fslock.Acquire(ctx, PartitionLockPath(path), s.lockTimeout)
	if err != nil {
		return path, 0, fmt.Errorf("lock partition: %w", err)
	}
	defer fileLock.Release()

	existing, err := ReadPartition(path)
	if err != nil {
		return path, 0, fmt.Errorf("read partition: %w", err)
	}

	merged := Merge(existing, records)
	if err := WriteFileAtomic(path, func(w io.Writer) error {
		return EncodeRecords(w, merged)
	}); err != nil {
		return path, 0, fmt.Errorf("write partition: %w", err)
	}
	return path, len(merged), nil
}

// PartitionLockPath returns the hidden lock file guarding merges into the
// partition at path.
func PartitionLockPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+lockFileExt)
}

// IsLockFile reports whether name is a partition lock file.
func IsLockFile(name string) bool {
	return len(name) > 1 && name[0] == '.' && filepath.Ext(name) == lockFileExt
}

// Merge concatenates existing and incoming records and drops duplicate
// identities. A record keeps the position where its identity first appeared
// and takes the values of its last occurrence, so incoming rows win.
func Merge(existing, incoming []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))
	for _, batch := range [][]domain.Record{existing, incoming} {
		for _, rec := range batch {
			if i, ok := pos[rec.ActivityID]; ok {
				out[i] = rec
				continue
			}
			pos[rec.ActivityID] = len(out)
			out = append(out, rec)
		}
	}
	return out
}

// Load reads the partition for the month containing month. A partition that
// was never written reads as an empty slice.
func (s *Store) Load(ctx context.Context, userID, activityType string, month time.Time) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.layout.PartitionFile(userID, activityType, month)
	if err != nil {
		return nil, err
	}
	return ReadPartition(path)
}

// Months lists the months that have a partition for the user and type, oldest first.
func (s *Store) Months(userID, activityType string) ([]time.Time, error) {
	dir, err := s.layout.ActivityDir(userID, activityType)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []time.Time{}, nil
		}
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	months := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if month, ok := ParsePartitionName(entry.Name()); ok {
			months = append(months, month)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months, nil
}
