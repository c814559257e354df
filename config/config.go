package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/hotelpricesync/pkg/errors"
)

// MaxSyncDays is the hard upper bound on a range synchronization span
const MaxSyncDays = 30

// Config represents the application configuration
type Config struct {
	// HTTP surface
	HTTPAddr       string
	AllowedOrigins []string
	APIRateLimit   float64

	// Ledger
	LedgerDriver string
	DatabaseURL  string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int
	PublishEvents        bool

	// Memcache configuration
	MemcacheAddr string

	// Static fetch
	FetchTimeout time.Duration
	FetchBlock   time.Duration

	// Range synchronization
	SyncDayDelay time.Duration
	SyncMaxDays  int
	SyncLockTTL  time.Duration

	// Calendar worker
	CalendarWorkerPath    string
	CalendarWorkerTimeout time.Duration
	CalendarDriver        string
	CalendarPrimary       string
	CalendarFallback      string
	CalendarFallbackIndex int
	CalendarLoadSettle    time.Duration
	CalendarClickSettle   time.Duration
	CalendarCacheTTL      time.Duration
	ChromePath            string

	// Scheduled refresh
	RefreshCron        string
	RefreshDays        int
	RefreshConcurrency int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		APIRateLimit:   getFloat("API_RATE_LIMIT", 5),

		LedgerDriver: getEnv("LEDGER_DRIVER", "memory"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "hotelsync"),
		RedisStreamMaxLength: getInt("REDIS_STREAM_MAX_LENGTH", 1000),
		PublishEvents:        getBool("PUBLISH_EVENTS", false),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", "localhost:11211"),

		FetchTimeout: seconds("FETCH_TIMEOUT_SECONDS", 30),
		FetchBlock:   seconds("FETCH_BLOCK_SECONDS", 300),

		SyncDayDelay: millis("SYNC_DAY_DELAY_MS", 2000),
		SyncMaxDays:  getInt("SYNC_MAX_DAYS", MaxSyncDays),
		SyncLockTTL:  seconds("SYNC_LOCK_TTL_SECONDS", 1800),

		CalendarWorkerPath:    getEnv("CALENDAR_WORKER_PATH", "calendar-worker"),
		CalendarWorkerTimeout: seconds("CALENDAR_WORKER_TIMEOUT_SECONDS", 90),
		CalendarDriver:        getEnv("CALENDAR_DRIVER", "chromedp"),
		CalendarPrimary:       getEnv("CALENDAR_PRIMARY_SELECTOR", `#hp_availability_style_changes [data-testid="searchbox-dates-container"]`),
		CalendarFallback:      getEnv("CALENDAR_FALLBACK_SELECTOR", `[data-testid="searchbox-dates-container"]`),
		CalendarFallbackIndex: getInt("CALENDAR_FALLBACK_INDEX", 1),
		CalendarLoadSettle:    millis("CALENDAR_LOAD_SETTLE_MS", 3000),
		CalendarClickSettle:   millis("CALENDAR_CLICK_SETTLE_MS", 8000),
		CalendarCacheTTL:      seconds("CALENDAR_CACHE_TTL_SECONDS", 0),
		ChromePath:            getEnv("CHROME_PATH", ""),

		RefreshCron:        getEnv("REFRESH_CRON", "0 0 */12 * * *"),
		RefreshDays:        getInt("REFRESH_DAYS", 7),
		RefreshConcurrency: getInt("REFRESH_CONCURRENCY", 2),

		Environment: getEnv("HOTELSYNC_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the services cannot run with
func (c *Config) Validate() error {
	switch c.LedgerDriver {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.NewConfiguration("DATABASE_URL is required for the postgres ledger", nil)
		}
	default:
		return errors.NewConfiguration("unknown LEDGER_DRIVER "+c.LedgerDriver, nil)
	}

	switch c.CalendarDriver {
	case "chromedp", "rod":
	default:
		return errors.NewConfiguration("unknown CALENDAR_DRIVER "+c.CalendarDriver, nil)
	}

	if c.SyncMaxDays < 1 || c.SyncMaxDays > MaxSyncDays {
		return errors.NewConfiguration("SYNC_MAX_DAYS must be between 1 and 30", nil)
	}
	if c.FetchTimeout <= 0 {
		return errors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.CalendarWorkerTimeout <= 0 {
		return errors.NewConfiguration("CALENDAR_WORKER_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.SyncDayDelay < 0 {
		return errors.NewConfiguration("SYNC_DAY_DELAY_MS must not be negative", nil)
	}
	if c.RefreshDays < 1 || c.RefreshDays > MaxSyncDays {
		return errors.NewConfiguration("REFRESH_DAYS must be between 1 and 30", nil)
	}
	if c.RefreshConcurrency < 1 {
		return errors.NewConfiguration("REFRESH_CONCURRENCY must be at least 1", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func seconds(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Second
}

func millis(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Millisecond
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
