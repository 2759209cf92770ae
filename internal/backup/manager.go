// Package backup snapshots the users tree into timestamped, manifest-marked
// directories under the backup root and compresses them into archives.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"example.com/activitystore/internal/fslock"
	"example.com/activitystore/internal/observability"
	"example.com/activitystore/internal/store"
)

var (
	// ErrSnapshotExists is returned when the destination snapshot name is taken.
	ErrSnapshotExists = errors.New("snapshot already exists")
	// ErrInvalidCategory is returned for categories that cannot name a snapshot.
	ErrInvalidCategory = errors.New("invalid backup category")
	// ErrIncompleteSnapshot marks a snapshot directory without a manifest.
	ErrIncompleteSnapshot = errors.New("snapshot has no manifest")
)

// Option configures optional behaviour for the Manager.
type Option func(*Manager)

// WithLogger overrides the logger used to report backup runs.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the clock used to timestamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager creates, compresses and lists backup snapshots. Runs are
// serialised in-process and across processes through the backup root lock.
type Manager struct {
	layout      store.Layout
	lockTimeout time.Duration
	mu          sync.Mutex
	logger      *zap.Logger
	now         func() time.Time
}

// NewManager constructs a Manager over the tree described by cfg.
func NewManager(cfg store.Config, opts ...Option) (*Manager, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	m := &Manager{
		layout:      layout,
		lockTimeout: lockTimeout,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Backup snapshots the users tree under the given category. It reports
// false on any failure; a failed run leaves no snapshot directory behind.
func (m *Manager) Backup(ctx context.Context, category string) bool {
	snap, err := m.CreateSnapshot(ctx, category)
	if err != nil {
		m.logger.Error("failed to create backup",
			zap.String("category", category),
			zap.String("operation", "backup"),
			zap.Error(err),
		)
		return false
	}
	m.logger.Info("created backup",
		zap.String("category", category),
		zap.String("snapshot", snap.Name),
		zap.Int64("size_bytes", snap.Size),
	)
	return true
}

// CreateSnapshot copies the users tree into backups/{category}_{timestamp},
// measures it and writes the manifest last.
func (m *Manager) CreateSnapshot(ctx context.Context, category string) (*Snapshot, error) {
	if err := validateCategory(category); err != nil {
		return nil, err
	}
	if err := m.layout.EnsureDirectories(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lock, err := fslock.Acquire(ctx, LockPath(m.layout), m.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf("acquire backup lock: %w", err)
	}
	defer lock.Release()

	start := time.Now()
	snap, err := m.createSnapshotLocked(ctx, category)
	snapshotDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		snapshotCounter.WithLabelValues(category, "failure").Inc()
		return nil, err
	}

	snapshotCounter.WithLabelValues(category, "success").Inc()
	snapshotSizeGauge.Set(float64(snap.Size))
	observability.RecordBackupCompleted(snap.Time)
	return snap, nil
}

func (m *Manager) createSnapshotLocked(ctx context.Context, category string) (*Snapshot, error) {
	ts := m.now().UTC().Truncate(time.Second)
	name := SnapshotName(category, ts)
	dir := filepath.Join(m.layout.BackupsDir(), name)

	if _, err := os.Stat(dir + ArchiveExt); err == nil {
		return nil, fmt.Errorf("%w: %s%s", ErrSnapshotExists, name, ArchiveExt)
	}
	if err := os.Mkdir(dir, 0o750); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotExists, name)
		}
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	complete := false
	defer func() {
		if !complete {
			if err := os.RemoveAll(dir); err != nil {
				m.logger.Warn("failed to remove partial snapshot", zap.String("snapshot", name), zap.Error(err))
			}
		}
	}()

	if err := copyTree(ctx, m.layout.UsersDir(), filepath.Join(dir, "users")); err != nil {
		return nil, fmt.Errorf("copy users tree: %w", err)
	}

	size, err := dirSize(dir)
	if err != nil {
		return nil, fmt.Errorf("measure snapshot: %w", err)
	}

	manifest := Manifest{Timestamp: ts.Format(TimestampLayout), Type: category, Size: size}
	if err := writeManifest(dir, manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	complete = true

	return &Snapshot{
		Name:     name,
		Category: category,
		Time:     ts,
		Path:     dir,
		Size:     size,
	}, nil
}

// Compress zips a complete snapshot directory into backups/<name>.zip and
// removes the directory. It returns the archive path.
func (m *Manager) Compress(ctx context.Context, name string) (string, error) {
	if err := store.ValidatePathComponent("snapshot", name); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lock, err := fslock.Acquire(ctx, LockPath(m.layout), m.lockTimeout)
	if err != nil {
		return "", fmt.Errorf("acquire backup lock: %w", err)
	}
	defer lock.Release()

	dir := filepath.Join(m.layout.BackupsDir(), name)
	zipPath := dir + ArchiveExt

	if _, err := ReadManifest(dir); err != nil {
		compressCounter.WithLabelValues("failure").Inc()
		return "", err
	}
	if _, err := os.Stat(zipPath); err == nil {
		compressCounter.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("%w: %s", ErrSnapshotExists, filepath.Base(zipPath))
	}

	if err := writeArchive(ctx, dir, zipPath); err != nil {
		compressCounter.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("compress %s: %w", name, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("archive written but snapshot dir not removed", zap.String("snapshot", name), zap.Error(err))
	}

	compressCounter.WithLabelValues("success").Inc()
	m.logger.Info("compressed backup", zap.String("snapshot", name), zap.String("archive", zipPath))
	return zipPath, nil
}

// List returns complete snapshots, oldest first: directories carrying a
// manifest and archives with a parseable name.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.layout.BackupsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Snapshot{}, nil
		}
		return nil, fmt.Errorf("list backups: %w", err)
	}

	snapshots := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		category, ts, err := ParseSnapshotName(entry.Name())
		if err != nil {
			continue
		}
		path := filepath.Join(m.layout.BackupsDir(), entry.Name())
		snap := Snapshot{Name: strings.TrimSuffix(entry.Name(), ArchiveExt), Category: category, Time: ts, Path: path}

		switch {
		case entry.IsDir():
			manifest, err := ReadManifest(path)
			if err != nil {
				continue
			}
			snap.Size = manifest.Size
		case entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ArchiveExt):
			info, err := entry.Info()
			if err != nil {
				continue
			}
			snap.Size = info.Size()
			snap.Archived = true
		default:
			continue
		}
		snapshots = append(snapshots, snap)
	}

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Time.Before(snapshots[j].Time) })
	return snapshots, nil
}

func validateCategory(category string) error {
	if err := store.ValidatePathComponent("category", category); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCategory, err)
	}
	if strings.HasPrefix(category, ".") || strings.ContainsAny(category, " \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	return nil
}
