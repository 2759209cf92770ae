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
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/activitystore/internal/config"
	"example.com/activitystore/internal/consumer"
	"example.com/activitystore/internal/domain"
	"example.com/activitystore/internal/logging"
	"example.com/activitystore/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "activity-store-consumer")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	activityStore, err := store.Open(cfg.StoreConfig(), store.WithLogger(logger.Named("store")))
	if err != nil {
		logger.Fatal("failed to open activity store", zap.Error(err))
	}
	service := domain.NewService(activityStore, logger.Named("domain"))

	publisher := consumer.NewKafkaPublisher(cfg.KafkaBrokers)
	defer publisher.Close()
	handler := consumer.NewStoreHandler(service, publisher, cfg.DeadLetterTopic, logger.Named("handler"))

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("consumer metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, topic := range cfg.ConsumerTopics {
		topic := topic
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.KafkaBrokers,
			GroupID:         cfg.ConsumerGroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger.With(zap.String("topic", topic))))

		group.Go(func() error {
			defer reader.Close()
			logger.Info("consumer started", zap.String("topic", topic), zap.String("group", cfg.ConsumerGroupID))
			if err := proc.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("consumer stopped with error", zap.Error(err))
	}
	logger.Info("consumer shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", zap.Error(err))
	}
}
