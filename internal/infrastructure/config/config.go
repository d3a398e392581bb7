// internal/infrastructure/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PostgreSQL
	PostgresURI string

	// MongoDB (raw feed snapshot archive)
	MongoURI string
	MongoDB  string

	// Upstream feed
	FeedBaseURL string
	FeedTimeout time.Duration

	// Operating timezone
	Timezone string

	// Sleep/wake
	CutoffHour       int
	WakeOffset       time.Duration
	FallbackWakeHour int
	StaleThreshold   time.Duration
	WakeTolerance    time.Duration

	// Polling interval tiers
	IntervalHigh   time.Duration
	IntervalMedium time.Duration
	IntervalLow    time.Duration
	IntervalIdle   time.Duration
	JitterHigh     time.Duration
	JitterMedium   time.Duration
	JitterLow      time.Duration
	JitterIdle     time.Duration
	HighThreshold  time.Duration
	MedThreshold   time.Duration
	LowThreshold   time.Duration

	// Executor retries
	MaxScrapeRetries int
	RetryBase        time.Duration
	RetryMax         time.Duration

	// Circuit breaker
	BreakerThreshold int
	BreakerReset     time.Duration

	// Prefetch slots
	PrefetchSlotSpec     string
	PrefetchBundleWindow time.Duration
	PrefetchClaimReset   time.Duration
	PrefetchMaxRetries   int
	StartupPrefetchDelay time.Duration

	// Scheduler safety net
	FallbackRearm time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	// Set defaults and override with env vars
	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "2.0.0"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		PostgresURI: getEnv("POSTGRES_DSN", "host=localhost user=airways password=airways dbname=airways port=5432 sslmode=disable"),

		MongoURI: getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "airways"),

		FeedBaseURL: getEnv("FEED_BASE_URL", "https://schedule.example.invalid"),
		FeedTimeout: time.Duration(getEnvAsInt("FEED_TIMEOUT_SEC", 30)) * time.Second,

		Timezone: getEnv("SCRAPER_TIMEZONE", "Europe/Guernsey"),

		CutoffHour:       getEnvAsInt("CUTOFF_HOUR", 23),
		WakeOffset:       time.Duration(getEnvAsInt("WAKE_OFFSET_MIN", 45)) * time.Minute,
		FallbackWakeHour: getEnvAsInt("FALLBACK_WAKE_HOUR", 5),
		StaleThreshold:   time.Duration(getEnvAsInt("STALE_THRESHOLD_MIN", 120)) * time.Minute,
		WakeTolerance:    time.Duration(getEnvAsInt("WAKE_TOLERANCE_MIN", 5)) * time.Minute,

		IntervalHigh:   time.Duration(getEnvAsInt("INTERVAL_HIGH_MS", 120000)) * time.Millisecond,
		IntervalMedium: time.Duration(getEnvAsInt("INTERVAL_MEDIUM_MS", 300000)) * time.Millisecond,
		IntervalLow:    time.Duration(getEnvAsInt("INTERVAL_LOW_MS", 600000)) * time.Millisecond,
		IntervalIdle:   time.Duration(getEnvAsInt("INTERVAL_IDLE_MS", 900000)) * time.Millisecond,
		JitterHigh:     time.Duration(getEnvAsInt("JITTER_HIGH_MS", 15000)) * time.Millisecond,
		JitterMedium:   time.Duration(getEnvAsInt("JITTER_MEDIUM_MS", 30000)) * time.Millisecond,
		JitterLow:      time.Duration(getEnvAsInt("JITTER_LOW_MS", 60000)) * time.Millisecond,
		JitterIdle:     time.Duration(getEnvAsInt("JITTER_IDLE_MS", 90000)) * time.Millisecond,
		HighThreshold:  time.Duration(getEnvAsInt("HIGH_FREQ_THRESHOLD_MIN", 20)) * time.Minute,
		MedThreshold:   time.Duration(getEnvAsInt("MED_FREQ_THRESHOLD_MIN", 60)) * time.Minute,
		LowThreshold:   time.Duration(getEnvAsInt("LOW_FREQ_THRESHOLD_MIN", 120)) * time.Minute,

		MaxScrapeRetries: getEnvAsInt("MAX_SCRAPE_RETRIES", 3),
		RetryBase:        time.Duration(getEnvAsInt("RETRY_BASE_MS", 2000)) * time.Millisecond,
		RetryMax:         time.Duration(getEnvAsInt("RETRY_MAX_MS", 60000)) * time.Millisecond,

		BreakerThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
		BreakerReset:     time.Duration(getEnvAsInt("CB_RESET_MS", 60000)) * time.Millisecond,

		PrefetchSlotSpec:     getEnv("PREFETCH_SLOT_SPEC", "0 0,6,12,18 * * *"),
		PrefetchBundleWindow: time.Duration(getEnvAsInt("PREFETCH_BUNDLE_WINDOW_MIN", 20)) * time.Minute,
		PrefetchClaimReset:   time.Duration(getEnvAsInt("PREFETCH_CLAIM_RESET_MIN", 30)) * time.Minute,
		PrefetchMaxRetries:   getEnvAsInt("PREFETCH_MAX_RETRIES", 3),
		StartupPrefetchDelay: time.Duration(getEnvAsInt("STARTUP_PREFETCH_DELAY_SEC", 90)) * time.Second,

		FallbackRearm: time.Duration(getEnvAsInt("FALLBACK_REARM_MIN", 5)) * time.Minute,
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
