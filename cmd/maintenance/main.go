package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/activitystore/internal/backup"
	"example.com/activitystore/internal/config"
	"example.com/activitystore/internal/logging"
	"example.com/activitystore/internal/maintenance"
	"example.com/activitystore/internal/retention"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	storeCfg := cfg.StoreConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "activity-store-maintenance")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	layout, err := storeCfg.Layout()
	if err != nil {
		logger.Fatal("invalid data base path", zap.Error(err))
	}
	if err := layout.EnsureDirectories(); err != nil {
		logger.Fatal("failed to prepare data directories", zap.Error(err))
	}

	manager, err := backup.NewManager(storeCfg, backup.WithLogger(logger.Named("backup")))
	if err != nil {
		logger.Fatal("failed to build backup manager", zap.Error(err))
	}
	sweeper, err := retention.NewSweeper(storeCfg, retention.WithLogger(logger.Named("retention")))
	if err != nil {
		logger.Fatal("failed to build retention sweeper", zap.Error(err))
	}
	runner := maintenance.NewRunner(manager, sweeper, maintenance.Config{
		Category:       cfg.BackupCategory,
		Compress:       cfg.BackupCompress,
		TempMaxAgeDays: storeCfg.TempMaxAgeDays,
		BackupInterval: cfg.BackupInterval,
		SweepInterval:  cfg.SweepInterval,
	}, logger)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("maintenance metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("maintenance runner stopped", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", zap.Error(err))
	}
}
