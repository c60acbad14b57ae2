package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HTTPTimeout != 5*time.Minute {
		t.Errorf("HTTPTimeout = %v, want 5m", cfg.HTTPTimeout)
	}
	if !reflect.DeepEqual(cfg.Formats, []string{"parquet", "csv"}) {
		t.Errorf("Formats = %v", cfg.Formats)
	}
	if cfg.ArchivePrefix != "nflverse_raw" || cfg.ServePort != "8080" || cfg.LogLevel != "info" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" || cfg.RefreshSchedule != "" {
		t.Errorf("optional settings must default to empty: %+v", cfg)
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"DATABASE_URL":    "postgres://u@h/db",
		"NFLVERSE_FORMAT": " CSV , ",
		"HTTP_TIMEOUT":    "30s",
		"SERVE_PORT":      "9000",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.DatabaseURL != "postgres://u@h/db" || cfg.ServePort != "9000" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Formats, []string{"csv"}) {
		t.Errorf("Formats = %v, want [csv]", cfg.Formats)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
}

func TestBadTimeout(t *testing.T) {
	if _, err := FromEnv(envMap(map[string]string{"HTTP_TIMEOUT": "soon"})); err == nil {
		t.Fatal("expected error for unparseable HTTP_TIMEOUT")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
