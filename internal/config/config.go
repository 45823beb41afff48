package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, shared by the player CLI
// and the development stub server.
type Config struct {
	// ─── Player ────────────────────────────────────────────────────────
	APIBaseURL string
	APIToken   string
	LogLevel   string
	LogFormat  string
	// HTTPTimeout bounds every single API round trip.
	HTTPTimeout time.Duration
	// StateRefreshInterval is how often the session state is revalidated
	// while an exam-mode session is active.
	StateRefreshInterval time.Duration
	// PrefetchCount is how many upcoming questions are fetched ahead of
	// the current position on every navigation.
	PrefetchCount int
	// TelemetryQueueSize caps buffered telemetry events; the oldest are
	// dropped once the queue is full.
	TelemetryQueueSize int

	// ─── Dev server ────────────────────────────────────────────────────
	DevServerPort string
	GinMode       string
	DevStore      string // "memory" or "redis"
	RedisURL      string
	JWTSecret     string
	JWTExpiry     time.Duration
	ReviewBaseURL string
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		APIBaseURL:           getEnv("API_BASE_URL", "http://localhost:8080"),
		APIToken:             getEnv("API_TOKEN", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "auto"),
		HTTPTimeout:          time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		StateRefreshInterval: time.Duration(getEnvInt("STATE_REFRESH_SECONDS", 15)) * time.Second,
		PrefetchCount:        getEnvInt("PREFETCH_COUNT", 2),
		TelemetryQueueSize:   getEnvInt("TELEMETRY_QUEUE_SIZE", 256),

		DevServerPort: getEnv("DEV_SERVER_PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		DevStore:      getEnv("DEV_STORE", "memory"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:     getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTExpiry:     time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 6)) * time.Hour,
		ReviewBaseURL: getEnv("REVIEW_BASE_URL", "http://localhost:3000/review"),

		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
