package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	Port string
	// SnapshotFile preloads a chain at startup: a CBOE CSV or a
	// .jsonl/.jsonl.zst archive. Empty starts the server without data.
	SnapshotFile string
	// ConfigFile points at the shared analytics YAML config.
	ConfigFile string
	// Upload throttling
	UploadRatePerMinute int
	UploadBurst         int
	MaxUploadBytes      int64
	// WebSocket configuration
	WSEnabled       bool
	WSWriteTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func LoadServerConfig() (*ServerConfig, error) {
	uploadRate, err := getEnvInt("UPLOAD_RATE_PER_MINUTE", 6)
	if err != nil {
		return nil, err
	}
	uploadBurst, err := getEnvInt("UPLOAD_BURST", 2)
	if err != nil {
		return nil, err
	}
	maxUpload, err := getEnvInt("MAX_UPLOAD_MB", 32)
	if err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Port:                getEnvOrDefault("PORT", "8080"),
		SnapshotFile:        getEnvOrDefault("SNAPSHOT_FILE", ""),
		ConfigFile:          getEnvOrDefault("CHAINSCOPE_CONFIG", ""),
		UploadRatePerMinute: uploadRate,
		UploadBurst:         uploadBurst,
		MaxUploadBytes:      int64(maxUpload) << 20,
		WSEnabled:           getEnvOrDefault("WS_ENABLED", "true") == "true",
		WSWriteTimeout:      10 * time.Second,
		ShutdownTimeout:     30 * time.Second,
	}

	if cfg.UploadRatePerMinute < 1 {
		return nil, fmt.Errorf("UPLOAD_RATE_PER_MINUTE must be >= 1")
	}
	if cfg.UploadBurst < 1 {
		return nil, fmt.Errorf("UPLOAD_BURST must be >= 1")
	}
	if cfg.MaxUploadBytes < 1 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be >= 1")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
