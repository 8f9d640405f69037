// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for all databases (always absolute)
	Port        int
	LogLevel    string
	DevMode     bool
	CORSOrigins []string

	// Engine defaults; stored settings override these at runtime.
	DefaultModel        string
	DefaultLookbackDays int
	DefaultHalfLifeDays float64

	// Anomaly defaults.
	AnomalySensitivity  string
	AnomalyBaselineDays int

	// Data retention horizon for datasets, reports, and anomalies.
	RetentionDays int

	// Calculation cache TTL in hours.
	CacheTTLHours int

	// Cron specs (robfig/cron format).
	AnomalyScanSpec   string
	RetentionSpec     string
	WALCheckpointSpec string
	BackupSpec        string

	// Local backup directory and retention.
	BackupDir        string
	BackupKeepDays   int

	// R2/S3 offsite backup.
	R2 R2Config
}

// R2Config holds S3-compatible offsite backup configuration
type R2Config struct {
	Enabled   bool
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	KeepCount int // minimum backups to keep when rotating
}

// Load reads configuration from environment variables. A .env file in
// the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("MERIDIAN_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:     absDataDir,
		Port:        getEnvAsInt("MERIDIAN_PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DevMode:     getEnvAsBool("DEV_MODE", false),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		DefaultModel:        getEnv("DEFAULT_MODEL", "linear"),
		DefaultLookbackDays: getEnvAsInt("DEFAULT_LOOKBACK_DAYS", 30),
		DefaultHalfLifeDays: getEnvAsFloat("DEFAULT_HALF_LIFE_DAYS", 7.0),

		AnomalySensitivity:  getEnv("ANOMALY_SENSITIVITY", "medium"),
		AnomalyBaselineDays: getEnvAsInt("ANOMALY_BASELINE_DAYS", 28),

		RetentionDays: getEnvAsInt("RETENTION_DAYS", 365),
		CacheTTLHours: getEnvAsInt("CACHE_TTL_HOURS", 24),

		AnomalyScanSpec:   getEnv("CRON_ANOMALY_SCAN", "0 2 * * *"),
		RetentionSpec:     getEnv("CRON_RETENTION", "30 3 * * *"),
		WALCheckpointSpec: getEnv("CRON_WAL_CHECKPOINT", "0 4 * * *"),
		BackupSpec:        getEnv("CRON_BACKUP", "0 5 * * *"),

		BackupDir:      getEnv("BACKUP_DIR", ""),
		BackupKeepDays: getEnvAsInt("BACKUP_KEEP_DAYS", 14),

		R2: R2Config{
			Enabled:   getEnvAsBool("R2_BACKUP_ENABLED", false),
			Endpoint:  getEnv("R2_ENDPOINT", ""),
			Bucket:    getEnv("R2_BUCKET", ""),
			AccessKey: getEnv("R2_ACCESS_KEY_ID", ""),
			SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			KeepCount: getEnvAsInt("R2_KEEP_COUNT", 7),
		},
	}

	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(absDataDir, "backups")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration values against their domains
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	switch c.DefaultModel {
	case "first_touch", "last_touch", "linear", "time_decay", "position_based":
	default:
		return fmt.Errorf("unknown default model %q", c.DefaultModel)
	}

	if c.DefaultLookbackDays < 1 || c.DefaultLookbackDays > 90 {
		return fmt.Errorf("default lookback days must be between 1 and 90, got %d", c.DefaultLookbackDays)
	}
	if c.DefaultHalfLifeDays <= 0 {
		return fmt.Errorf("default half-life days must be positive, got %.2f", c.DefaultHalfLifeDays)
	}

	switch c.AnomalySensitivity {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("unknown anomaly sensitivity %q", c.AnomalySensitivity)
	}
	if c.AnomalyBaselineDays < 7 {
		return fmt.Errorf("anomaly baseline days must be at least 7, got %d", c.AnomalyBaselineDays)
	}

	if c.RetentionDays < 1 {
		return fmt.Errorf("retention days must be at least 1, got %d", c.RetentionDays)
	}
	if c.CacheTTLHours < 1 {
		return fmt.Errorf("cache TTL hours must be at least 1, got %d", c.CacheTTLHours)
	}

	if c.R2.Enabled {
		if c.R2.Endpoint == "" || c.R2.Bucket == "" || c.R2.AccessKey == "" || c.R2.SecretKey == "" {
			return fmt.Errorf("R2 backup enabled but endpoint, bucket, or credentials missing")
		}
	}

	return nil
}

// DatabasePath returns the path of a named database file under DataDir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
