// Package maintenance schedules backups and retention sweeps.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/activitystore/internal/backup"
	"example.com/activitystore/internal/retention"
)

// Config controls what a Runner does on each tick.
type Config struct {
	Category       string
	Compress       bool
	TempMaxAgeDays int
	BackupInterval time.Duration
	SweepInterval  time.Duration
}

// Runner periodically snapshots the users tree and applies retention.
type Runner struct {
	backups *backup.Manager
	sweeper *retention.Sweeper
	cfg     Config
	logger  *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(backups *backup.Manager, sweeper *retention.Sweeper, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{backups: backups, sweeper: sweeper, cfg: cfg, logger: logger}
}

// RunBackup creates one snapshot and, when configured, compresses it.
func (r *Runner) RunBackup(ctx context.Context) error {
	snap, err := r.backups.CreateSnapshot(ctx, r.cfg.Category)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	r.logger.Info("backup created",
		zap.String("snapshot", snap.Name),
		zap.Int64("size_bytes", snap.Size),
	)
	if !r.cfg.Compress {
		return nil
	}

	archive, err := r.backups.Compress(ctx, snap.Name)
	if err != nil {
		return fmt.Errorf("compress snapshot %s: %w", snap.Name, err)
	}
	r.logger.Info("backup compressed", zap.String("archive", archive))
	return nil
}

// RunSweep prunes expired backups and stale temp files. Both steps run even
// when the first fails.
func (r *Runner) RunSweep(ctx context.Context) error {
	pruned, pruneErr := r.sweeper.PruneBackups(ctx)
	if pruneErr != nil {
		pruneErr = fmt.Errorf("prune backups: %w", pruneErr)
	}
	cleaned, cleanErr := r.sweeper.CleanupTempFiles(ctx, r.cfg.TempMaxAgeDays)
	if cleanErr != nil {
		cleanErr = fmt.Errorf("clean temp files: %w", cleanErr)
	}

	if len(pruned.Deleted) > 0 || len(cleaned.Deleted) > 0 {
		r.logger.Info("retention sweep completed",
			zap.Int("backups_deleted", len(pruned.Deleted)),
			zap.Int("backups_skipped", len(pruned.Skipped)),
			zap.Int("temp_deleted", len(cleaned.Deleted)),
		)
	}
	return errors.Join(pruneErr, cleanErr)
}

// Run blocks until ctx is cancelled, running a sweep immediately and then
// backups and sweeps on their own intervals. Failures are logged and the
// loop continues.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.BackupInterval <= 0 || r.cfg.SweepInterval <= 0 {
		return errors.New("backup and sweep intervals must be positive")
	}

	backupTicker := time.NewTicker(r.cfg.BackupInterval)
	defer backupTicker.Stop()
	sweepTicker := time.NewTicker(r.cfg.SweepInterval)
	defer sweepTicker.Stop()

	r.logger.Info("maintenance runner started",
		zap.Duration("backup_interval", r.cfg.BackupInterval),
		zap.Duration("sweep_interval", r.cfg.SweepInterval),
		zap.String("category", r.cfg.Category),
	)

	if err := r.RunSweep(ctx); err != nil {
		r.logger.Error("retention sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-backupTicker.C:
			if err := r.RunBackup(ctx); err != nil {
				r.logger.Error("backup run failed", zap.Error(err))
			}
		case <-sweepTicker.C:
			if err := r.RunSweep(ctx); err != nil {
				r.logger.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}
