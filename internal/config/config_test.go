package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activitystore/internal/store"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATA_BASE_PATH", "BACKUP_RETENTION_DAYS", "TEMP_MAX_AGE_DAYS", "BACKUP_COMPRESS", "LOCK_TIMEOUT", "CONSUMER_TOPICS", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	require.Equal(t, "data", cfg.BasePath)
	require.Equal(t, 30, cfg.BackupRetentionDays)
	require.Equal(t, 7, cfg.TempMaxAgeDays)
	require.True(t, cfg.BackupCompress)
	require.Equal(t, 30*time.Second, cfg.LockTimeout)
	require.Equal(t, []string{"activity_batches"}, cfg.ConsumerTopics)
	require.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_BASE_PATH", "/srv/activity")
	t.Setenv("BACKUP_RETENTION_DAYS", "90")
	t.Setenv("TEMP_MAX_AGE_DAYS", "not-a-number")
	t.Setenv("BACKUP_COMPRESS", "false")
	t.Setenv("SWEEP_INTERVAL", "15m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com,http://localhost:5173")

	cfg := Load()

	require.Equal(t, "/srv/activity", cfg.BasePath)
	require.Equal(t, 90, cfg.BackupRetentionDays)
	require.Equal(t, 7, cfg.TempMaxAgeDays)
	require.False(t, cfg.BackupCompress)
	require.Equal(t, 15*time.Minute, cfg.SweepInterval)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"https://app.example.com", "http://localhost:5173"}, cfg.CORSAllowedOrigins)

	require.Equal(t, store.Config{
		BasePath:            "/srv/activity",
		BackupRetentionDays: 90,
		TempMaxAgeDays:      7,
		LockTimeout:         30 * time.Second,
	}, cfg.StoreConfig())
}

func TestValidate(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("BACKUP_CATEGORY", "")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("BACKUP_INTERVAL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	cases := map[string]func(*Config){
		"empty base path":     func(c *Config) { c.BasePath = "" },
		"negative retention":  func(c *Config) { c.BackupRetentionDays = -1 },
		"category separator":  func(c *Config) { c.BackupCategory = "daily/extra" },
		"zero sweep interval": func(c *Config) { c.SweepInterval = 0 },
		"unknown log level":   func(c *Config) { c.LogLevel = "trace" },
		"unknown log format":  func(c *Config) { c.LogFormat = "xml" },
		"bad cors origin":     func(c *Config) { c.CORSAllowedOrigins = []string{"not a url"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			broken := cfg
			mutate(&broken)
			require.Error(t, broken.Validate())
		})
	}
}
