package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Wallet API
	WalletAPIURL   string
	WalletAPIToken string

	// Supabase mirrors the wallet tables and replaces the wallet API
	// as data source when UseSupabase is set.
	UseSupabase        bool
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseRowLimit   int

	// HTTP client
	HTTPTimeout time.Duration

	// FetchTimeout bounds one orchestrated fetch, retries included.
	FetchTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Query slots untouched for SlotMaxAge are pruned every PruneInterval.
	SlotMaxAge    time.Duration
	PruneInterval time.Duration

	// Lists
	PageSize int
	PageStep int

	// Timezone anchors the Day/Week/Month chart windows.
	Timezone string

	// Observability
	OTLPEndpoint string
	OTelEnabled  bool
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		WalletAPIURL:   getEnv("WALLET_API_URL", "http://localhost:8081"),
		WalletAPIToken: getEnv("WALLET_API_TOKEN", ""),

		UseSupabase:        getEnvBool("USE_SUPABASE", false),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseRowLimit:   getEnvInt("SUPABASE_ROW_LIMIT", 500),

		HTTPTimeout:  getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 15*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 16),

		CacheTTL: getEnvDuration("CACHE_TTL", 2*time.Minute),

		SlotMaxAge:    getEnvDuration("SLOT_MAX_AGE", 30*time.Minute),
		PruneInterval: getEnvDuration("PRUNE_INTERVAL", 5*time.Minute),

		PageSize: getEnvInt("PAGE_SIZE", 20),
		PageStep: getEnvInt("PAGE_STEP", 20),

		Timezone: getEnv("TIMEZONE", "Africa/Lagos"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
	}
}

// Location resolves Timezone, falling back to UTC when the zone is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TraceEndpoint is the exporter endpoint, or empty when export is disabled.
func (c *Config) TraceEndpoint() string {
	if !c.OTelEnabled {
		return ""
	}
	return c.OTLPEndpoint
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
