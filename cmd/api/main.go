package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/activitystore/internal/api"
	"example.com/activitystore/internal/auth"
	"example.com/activitystore/internal/config"
	"example.com/activitystore/internal/domain"
	"example.com/activitystore/internal/logging"
	"example.com/activitystore/internal/store"
	httptransport "example.com/activitystore/internal/transport/http"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "activity-store-api")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	activityStore, err := store.Open(cfg.StoreConfig(), store.WithLogger(logger.Named("store")))
	if err != nil {
		logger.Fatal("failed to open activity store", zap.Error(err))
	}
	service := domain.NewService(activityStore, logger.Named("domain"))

	handler := api.NewHandler(service, logger.Named("api"))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	requestLogger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Duration("elapsed", time.Since(start)))
		})
	}

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.CORS(cfg.CORSAllowedOrigins, authMiddleware.Wrap(requestLogger(mux))),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("activity store api listening", zap.String("address", cfg.HTTPAddress), zap.String("base_path", activityStore.Layout().Base()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
