package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.PeakStartHour != 6 || cfg.PeakEndHour != 22 {
		t.Errorf("peak window = %d-%d", cfg.PeakStartHour, cfg.PeakEndHour)
	}
	if cfg.PeakPushInterval != 5*time.Second || cfg.OffPeakPushInterval != 30*time.Second {
		t.Errorf("push intervals = %s/%s", cfg.PeakPushInterval, cfg.OffPeakPushInterval)
	}
	if cfg.RetentionMaxAge != 24*time.Hour {
		t.Errorf("RetentionMaxAge = %s", cfg.RetentionMaxAge)
	}
	if cfg.DefaultProgress != 0 {
		t.Errorf("DefaultProgress = %g", cfg.DefaultProgress)
	}
	if cfg.NATSSubject != "darwin.movements" {
		t.Errorf("NATSSubject = %q", cfg.NATSSubject)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PEAK_PUSH_INTERVAL", "3s")
	t.Setenv("DEFAULT_PROGRESS_RATIO", "0.5")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.PeakPushInterval != 3*time.Second {
		t.Errorf("PeakPushInterval = %s", cfg.PeakPushInterval)
	}
	if cfg.DefaultProgress != 0.5 {
		t.Errorf("DefaultProgress = %g", cfg.DefaultProgress)
	}
	if len(cfg.RateLimitWhitelist) != 2 || cfg.RateLimitWhitelist[1] != "10.0.0.2" {
		t.Errorf("whitelist = %v", cfg.RateLimitWhitelist)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PEAK_PUSH_INTERVAL", "not-a-duration")
	t.Setenv("JOURNAL_WINDOW", "many")
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PeakPushInterval != 5*time.Second {
		t.Errorf("PeakPushInterval = %s, want default", cfg.PeakPushInterval)
	}
	if cfg.JournalWindow != 10000 {
		t.Errorf("JournalWindow = %d, want default", cfg.JournalWindow)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want default", cfg.LogLevel)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string][2]string{
		"peak hour":      {"PEAK_HOURS_END", "24"},
		"progress ratio": {"DEFAULT_PROGRESS_RATIO", "1.5"},
		"override range": {"OVERRIDE_MIN_INTERVAL", "2h"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%s", kv[0], kv[1])
			}
		})
	}
}
