// Package retention deletes expired backup snapshots and stale temp files.
package retention

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/activitystore/internal/backup"
	"example.com/activitystore/internal/fslock"
	"example.com/activitystore/internal/observability"
	"example.com/activitystore/internal/store"
)

const day = 24 * time.Hour

// Option configures optional behaviour for the Sweeper.
type Option func(*Sweeper)

// WithLogger overrides the logger used to report deletions and skips.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithClock overrides the clock ages are measured against.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// Result lists the entries a sweep removed and the ones it left in place.
type Result struct {
	Deleted []string
	Skipped []string
}

// Sweeper applies backup retention and temp-file cleanup. Both operations
// are idempotent.
type Sweeper struct {
	layout        store.Layout
	retentionDays int
	lockTimeout   time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewSweeper constructs a Sweeper over the tree described by cfg, keeping
// backups for cfg.BackupRetentionDays.
func NewSweeper(cfg store.Config, opts ...Option) (*Sweeper, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	s := &Sweeper{
		layout:        layout,
		retentionDays: cfg.BackupRetentionDays,
		lockTimeout:   lockTimeout,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// PruneBackups deletes archives and complete snapshot directories whose
// name timestamp is older than the retention window. Names that cannot be
// parsed are skipped with a warning.
func (s *Sweeper) PruneBackups(ctx context.Context) (Result, error) {
	result := Result{Deleted: []string{}, Skipped: []string{}}
	if s.retentionDays < 0 {
		return result, fmt.Errorf("retention days must be >= 0, got %d", s.retentionDays)
	}

	lock, err := fslock.Acquire(ctx, backup.LockPath(s.layout), s.lockTimeout)
	if err != nil {
		return result, fmt.Errorf("acquire backup lock: %w", err)
	}
	defer lock.Release()

	entries, err := os.ReadDir(s.layout.BackupsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return result, fmt.Errorf("list backups: %w", err)
	}

	cutoff := s.now().UTC().Add(-time.Duration(s.retentionDays) * day)
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		isArchive := entry.Type().IsRegular() && strings.HasSuffix(name, backup.ArchiveExt)
		if !isArchive && !entry.IsDir() {
			continue
		}
		path := filepath.Join(s.layout.BackupsDir(), name)

		_, ts, err := backup.ParseSnapshotName(name)
		if err != nil {
			s.logger.Warn("skipping backup with unparseable name", zap.String("name", name), zap.Error(err))
			result.Skipped = append(result.Skipped, name)
			sweepSkippedCounter.WithLabelValues(kindBackup).Inc()
			continue
		}
		if entry.IsDir() {
			if _, err := backup.ReadManifest(path); err != nil {
				s.logger.Debug("skipping snapshot without manifest", zap.String("name", name))
				result.Skipped = append(result.Skipped, name)
				sweepSkippedCounter.WithLabelValues(kindBackup).Inc()
				continue
			}
		}
		if !ts.Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		result.Deleted = append(result.Deleted, name)
		sweepDeletedCounter.WithLabelValues(kindBackup).Inc()
		s.logger.Info("deleted expired backup", zap.String("name", name), zap.Time("taken_at", ts))
	}

	if err := errors.Join(errs...); err != nil {
		return result, err
	}
	observability.RecordSweepCompleted(s.now())
	return result, nil
}

// CleanupTempFiles deletes regular files in the temp area whose age in whole
// days is at least maxAgeDays. A file exactly at the threshold is deleted.
func (s *Sweeper) CleanupTempFiles(ctx context.Context, maxAgeDays int) (Result, error) {
	result := Result{Deleted: []string{}, Skipped: []string{}}
	if maxAgeDays < 0 {
		return result, fmt.Errorf("max age days must be >= 0, got %d", maxAgeDays)
	}

	entries, err := os.ReadDir(s.layout.TempDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return result, fmt.Errorf("list temp dir: %w", err)
	}

	now := s.now()
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, fmt.Errorf("stat %s: %w", entry.Name(), err))
			continue
		}

		ageDays := int(now.Sub(info.ModTime()) / day)
		if ageDays < maxAgeDays {
			result.Skipped = append(result.Skipped, entry.Name())
			continue
		}

		if err := os.Remove(filepath.Join(s.layout.TempDir(), entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("delete %s: %w", entry.Name(), err))
			continue
		}
		result.Deleted = append(result.Deleted, entry.Name())
		sweepDeletedCounter.WithLabelValues(kindTemp).Inc()
		s.logger.Info("cleaned up temp file", zap.String("name", entry.Name()), zap.Int("age_days", ageDays))
	}

	return result, errors.Join(errs...)
}
