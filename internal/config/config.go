// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the CLI and serve mode read.
type Config struct {
	DatabaseURL     string
	RedisURL        string
	ArchiveBucket   string
	ArchivePrefix   string
	Formats         []string
	BaseURL         string
	GitHubToken     string
	HTTPTimeout     time.Duration
	LogLevel        string
	ServePort       string
	RefreshSchedule string
}

// Load reads .env (when present) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	timeout, err := time.ParseDuration(get("HTTP_TIMEOUT", "5m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_TIMEOUT: %w", err)
	}

	var formats []string
	for _, f := range strings.Split(get("NFLVERSE_FORMAT", "parquet,csv"), ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			formats = append(formats, f)
		}
	}

	return Config{
		DatabaseURL:     get("DATABASE_URL", ""),
		RedisURL:        get("REDIS_URL", ""),
		ArchiveBucket:   get("ARCHIVE_BUCKET", ""),
		ArchivePrefix:   get("ARCHIVE_PREFIX", "nflverse_raw"),
		Formats:         formats,
		BaseURL:         get("NFLVERSE_BASE_URL", ""),
		GitHubToken:     get("GITHUB_TOKEN", ""),
		HTTPTimeout:     timeout,
		LogLevel:        get("LOG_LEVEL", "info"),
		ServePort:       get("SERVE_PORT", "8080"),
		RefreshSchedule: get("REFRESH_SCHEDULE", ""),
	}, nil
}

// ParseLevel maps a level name to slog.Level; unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
