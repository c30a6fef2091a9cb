package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	NATSURL         string
	NATSSubject     string
	FeedBackoffMin  time.Duration
	FeedBackoffMax  time.Duration
	FeedMaxRetries  int
	SyntheticSeed   int64
	SyntheticPeriod time.Duration

	DBPath string

	RetentionMaxAge time.Duration
	SweepInterval   time.Duration
	JournalWindow   int

	PeakStartHour       int
	PeakEndHour         int
	InitInterval        time.Duration
	PeakPushInterval    time.Duration
	OffPeakPushInterval time.Duration
	PeakReconcile       time.Duration
	OffPeakReconcile    time.Duration
	OverrideMinInterval time.Duration
	OverrideMaxInterval time.Duration

	// DefaultProgress is the progress ratio assigned when a segment has
	// no usable timetable. 0 treats the train as freshly departed.
	DefaultProgress float64
	StoppedIdle     time.Duration

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string

	WSCompressThreshold int
}

func Load() (*Config, error) {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		NATSURL:         getEnv("NATS_URL", ""),
		NATSSubject:     getEnv("NATS_SUBJECT", "darwin.movements"),
		FeedBackoffMin:  getDurationEnv("FEED_BACKOFF_MIN", 2*time.Second),
		FeedBackoffMax:  getDurationEnv("FEED_BACKOFF_MAX", 2*time.Minute),
		FeedMaxRetries:  getIntEnv("FEED_MAX_RETRIES", 5),
		SyntheticSeed:   int64(getIntEnv("SYNTHETIC_SEED", 1)),
		SyntheticPeriod: getDurationEnv("SYNTHETIC_PERIOD", 10*time.Second),

		DBPath: getEnv("DB_PATH", "data/train_positions.db"),

		RetentionMaxAge: getDurationEnv("RETENTION_MAX_AGE", 24*time.Hour),
		SweepInterval:   getDurationEnv("SWEEP_INTERVAL", 30*time.Minute),
		JournalWindow:   getIntEnv("JOURNAL_WINDOW", 10000),

		PeakStartHour:       getIntEnv("PEAK_HOURS_START", 6),
		PeakEndHour:         getIntEnv("PEAK_HOURS_END", 22),
		InitInterval:        getDurationEnv("INITIAL_UPDATE_INTERVAL", 2*time.Second),
		PeakPushInterval:    getDurationEnv("PEAK_PUSH_INTERVAL", 5*time.Second),
		OffPeakPushInterval: getDurationEnv("OFFPEAK_PUSH_INTERVAL", 30*time.Second),
		PeakReconcile:       getDurationEnv("PEAK_RECONCILE_INTERVAL", time.Minute),
		OffPeakReconcile:    getDurationEnv("OFFPEAK_RECONCILE_INTERVAL", 5*time.Minute),
		OverrideMinInterval: getDurationEnv("OVERRIDE_MIN_INTERVAL", time.Second),
		OverrideMaxInterval: getDurationEnv("OVERRIDE_MAX_INTERVAL", time.Hour),

		DefaultProgress: getFloatEnv("DEFAULT_PROGRESS_RATIO", 0.0),
		StoppedIdle:     getDurationEnv("STOPPED_IDLE_AFTER", 3*time.Minute),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		CacheTTL:      getDurationEnv("CACHE_TTL", 2*time.Second),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 120),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),

		WSCompressThreshold: getIntEnv("WS_COMPRESS_THRESHOLD", 1024),
	}

	if cfg.PeakStartHour < 0 || cfg.PeakStartHour > 23 || cfg.PeakEndHour < 0 || cfg.PeakEndHour > 23 {
		return nil, fmt.Errorf("peak window hours must be within 0-23, got %d-%d", cfg.PeakStartHour, cfg.PeakEndHour)
	}
	if cfg.DefaultProgress < 0 || cfg.DefaultProgress > 1 {
		return nil, fmt.Errorf("DEFAULT_PROGRESS_RATIO must be within [0,1], got %g", cfg.DefaultProgress)
	}
	if cfg.OverrideMinInterval > cfg.OverrideMaxInterval {
		return nil, fmt.Errorf("OVERRIDE_MIN_INTERVAL exceeds OVERRIDE_MAX_INTERVAL")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
