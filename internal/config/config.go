package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds streak service configuration loaded from the environment.
type Config struct {
	AppName   string
	LogLevel  string
	LogFormat string
	HTTPPort  string

	DatabaseURL      string
	PreferencesTable string
	DeliveriesTable  string
	RedisURL         string
	RedisPassword    string
	RedisDB          int

	RabbitURL       string
	TapQueue        string
	TapRoutingKey   string
	DeadLetterQueue string
	PrefetchCount   int
	WorkerCount     int
	MaxDeliveries   int

	FCMServerKey    string
	FCMEndpoint     string
	ProviderTimeout time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	CatalogDir string
	Timezone   string

	QuizCount         int
	QuizStartHour     int
	QuizEndHour       int
	QuizFallbackTitle string
	StreakFireOffset  time.Duration

	LaunchSettleDelay      time.Duration
	TapSettleDelay         time.Duration
	CelebrationSettleDelay time.Duration
	PermissionWaitTimeout  time.Duration

	DeliveryPollInterval time.Duration
	DeliveryBatch        int

	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration
}

// Load loads configuration and performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:   getEnv("APP_NAME", "streak_service"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		HTTPPort:  getEnv("HTTP_PORT", "8084"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		PreferencesTable: getEnv("PREFERENCES_TABLE", "device_preferences"),
		DeliveriesTable:  getEnv("DELIVERIES_TABLE", "notification_deliveries"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvAsInt("REDIS_DB", 0),

		RabbitURL:       getEnv("RABBITMQ_URL", ""),
		TapQueue:        getEnv("TAP_QUEUE", "notification.taps"),
		TapRoutingKey:   getEnv("TAP_ROUTING_KEY", "tap"),
		DeadLetterQueue: getEnv("TAP_DLQ", "notification.taps.failed"),
		PrefetchCount:   getEnvAsInt("TAP_PREFETCH", 50),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 4),
		MaxDeliveries:   getEnvAsInt("TAP_MAX_DELIVERIES", 5),

		FCMServerKey:    getEnv("FCM_SERVER_KEY", ""),
		FCMEndpoint:     getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
		ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),

		RetryMaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 4),
		RetryInitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", time.Second),
		RetryMaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 15*time.Second),

		CatalogDir: getEnv("CATALOG_DIR", ""),
		Timezone:   getEnv("TIMEZONE", "Local"),

		QuizCount:         getEnvAsInt("QUIZ_COUNT", 3),
		QuizStartHour:     getEnvAsInt("QUIZ_START_HOUR", 18),
		QuizEndHour:       getEnvAsInt("QUIZ_END_HOUR", 24),
		QuizFallbackTitle: getEnv("QUIZ_FALLBACK_TITLE", "Daily Check-in"),
		StreakFireOffset:  getEnvAsDuration("STREAK_FIRE_OFFSET", 5*time.Second),

		LaunchSettleDelay:      getEnvAsDuration("LAUNCH_SETTLE_DELAY", time.Second),
		TapSettleDelay:         getEnvAsDuration("TAP_SETTLE_DELAY", 500*time.Millisecond),
		CelebrationSettleDelay: getEnvAsDuration("CELEBRATION_SETTLE_DELAY", 300*time.Millisecond),
		PermissionWaitTimeout:  getEnvAsDuration("PERMISSION_WAIT_TIMEOUT", 30*time.Second),

		DeliveryPollInterval: getEnvAsDuration("DELIVERY_POLL_INTERVAL", 15*time.Second),
		DeliveryBatch:        getEnvAsInt("DELIVERY_BATCH", 100),

		SessionIdleTTL:       getEnvAsDuration("SESSION_IDLE_TTL", 24*time.Hour),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves Timezone, the zone "tomorrow" is computed in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c *Config) validate() error {
	var missing []string
	if c.RabbitURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if c.FCMServerKey == "" {
		missing = append(missing, "FCM_SERVER_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	if c.QuizStartHour < 0 || c.QuizEndHour > 24 || c.QuizStartHour >= c.QuizEndHour {
		return fmt.Errorf("invalid quiz window [%d, %d)", c.QuizStartHour, c.QuizEndHour)
	}
	if c.QuizCount < 0 {
		return fmt.Errorf("QUIZ_COUNT must not be negative, got %d", c.QuizCount)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
