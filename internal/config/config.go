package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv           string
	Port             string
	RedisURL         string
	BroadcastChannel string
	ConnectionsKey   string
	ShutdownTimeout  time.Duration
	ShutdownPoll     time.Duration
	WorkerHeartbeat  time.Duration
	LogLevel         string
	LogFormat        string
}

func Load() (*Config, error) {
	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownPoll, err := getDuration("SHUTDOWN_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	workerHeartbeat, err := getDuration("WORKER_HEARTBEAT_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		RedisURL:         getEnv("REDIS_URL", ""),
		BroadcastChannel: getEnv("REDIS_BROADCAST_CHANNEL", "ws:broadcast"),
		ConnectionsKey:   getEnv("WS_CONNECTIONS_KEY", "ws:connections"),
		ShutdownTimeout:  shutdownTimeout,
		ShutdownPoll:     shutdownPoll,
		WorkerHeartbeat:  workerHeartbeat,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.ShutdownPoll <= 0 {
		return nil, fmt.Errorf("SHUTDOWN_POLL_INTERVAL must be positive")
	}
	if cfg.WorkerHeartbeat <= 0 {
		return nil, fmt.Errorf("WORKER_HEARTBEAT_INTERVAL must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration reads a duration env var. Accepts Go duration syntax ("30s",
// "1m") and, for compatibility with older deployments, bare integer seconds.
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("%s must be a duration or integer seconds, got %q", key, value)
}
