// Package config centralises configuration parsing for the activity store binaries.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"example.com/activitystore/internal/store"
)

var validate = validator.New()

// Config captures runtime configuration values for the activity store.
type Config struct {
	BasePath            string        `validate:"required"`
	BackupRetentionDays int           `validate:"gte=0"`
	TempMaxAgeDays      int           `validate:"gte=0"`
	BackupCategory      string        `validate:"required,excludesall=/\\"`
	BackupCompress      bool
	BackupInterval      time.Duration `validate:"gt=0"`
	SweepInterval       time.Duration `validate:"gt=0"`
	LockTimeout         time.Duration `validate:"gt=0"` // Maximum wait for partition and backup lock files.
	HTTPAddress         string        `validate:"required"`
	CORSAllowedOrigins  []string      `validate:"dive,url"`
	MetricsAddress      string        `validate:"required"`
	KafkaBrokers        []string
	ConsumerGroupID     string
	ConsumerTopics      []string
	DeadLetterTopic     string
	JWTSecret           string `validate:"required"`
	JWTIssuer           string
	LogLevel            string `validate:"oneof=debug info warn error"`
	LogFormat           string `validate:"oneof=json console"` // "json" or "console".
}

// Load reads an optional .env file and environment variables into Config,
// applying sensible defaults for local dev.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}

	return Config{
		BasePath:            getEnv("DATA_BASE_PATH", "data"),
		BackupRetentionDays: getIntEnv("BACKUP_RETENTION_DAYS", 30),
		TempMaxAgeDays:      getIntEnv("TEMP_MAX_AGE_DAYS", 7),
		BackupCategory:      getEnv("BACKUP_CATEGORY", "daily"),
		BackupCompress:      getBoolEnv("BACKUP_COMPRESS", true),
		BackupInterval:      getDurationEnv("BACKUP_INTERVAL", 24*time.Hour),
		SweepInterval:       getDurationEnv("SWEEP_INTERVAL", time.Hour),
		LockTimeout:         getDurationEnv("LOCK_TIMEOUT", 30*time.Second),
		HTTPAddress:         getEnv("HTTP_ADDRESS", ":8080"),
		CORSAllowedOrigins:  splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
		MetricsAddress:      getEnv("METRICS_ADDRESS", ":9195"),
		KafkaBrokers:        splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		ConsumerGroupID:     getEnv("CONSUMER_GROUP_ID", "activity-store-consumer"),
		ConsumerTopics:      splitAndTrim(getEnv("CONSUMER_TOPICS", "activity_batches")),
		DeadLetterTopic:     getEnv("DEAD_LETTER_TOPIC", "activity_batches_dlq"),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:           getEnv("JWT_ISSUER", "i5e.identity"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
	}
}

// Validate reports the first invalid field, if any.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// StoreConfig extracts the configuration object handed to store components.
func (c Config) StoreConfig() store.Config {
	return store.Config{
		BasePath:            c.BasePath,
		BackupRetentionDays: c.BackupRetentionDays,
		TempMaxAgeDays:      c.TempMaxAgeDays,
		LockTimeout:         c.LockTimeout,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
