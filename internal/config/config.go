// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as the bot identity, eligibility rules, database pooling, caching,
// broadcast pacing, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig defines the platform identity and the eligibility rules.
type BotConfig struct {
	Token          string        // BOT_TOKEN
	Name           string        // BOT_NAME, used in personal invite links
	Channel        string        // CHANNEL_USERNAME, e.g. "@mychannel"
	WebhookSecret  string        // WEBHOOK_SECRET, path segment on the webhook route
	SharesRequired int           // SHARES_REQUIRED; 0 disables the quota
	Cooldown       time.Duration // COOLDOWN between predictions per user
	PredictionLead time.Duration // PREDICTION_LEAD, how far ahead the target time lies
	Timezone       string        // TIMEZONE for rendering prediction times
}

// DBConfig defines the relational store and its pool bounds.
type DBConfig struct {
	URL              string        // DATABASE_URL; postgres when set
	Path             string        // DB_PATH; sqlite fallback for dev
	MinConns         int           // DB_POOL_MIN
	MaxConns         int           // DB_POOL_MAX
	ConnectTimeout   time.Duration // DB_CONNECT_TIMEOUT
	StatementTimeout time.Duration // DB_STATEMENT_TIMEOUT
	IdleTimeout      time.Duration // DB_IDLE_TIMEOUT
	MaxAttempts      int           // DB_INIT_ATTEMPTS before startup aborts
}

// CacheConfig bounds the in-memory caches.
type CacheConfig struct {
	MembershipTTL time.Duration // MEMBERSHIP_CACHE_TTL
	MembershipCap int           // MEMBERSHIP_CACHE_SIZE
	ReferralTTL   time.Duration // REFERRAL_CACHE_TTL
	ReferralCap   int           // REFERRAL_CACHE_SIZE
}

// BroadcastConfig paces admin fan-outs.
type BroadcastConfig struct {
	BatchSize int           // BROADCAST_BATCH_SIZE
	Interval  time.Duration // BROADCAST_INTERVAL between batches
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	Bot       BotConfig
	DB        DBConfig
	Cache     CacheConfig
	Broadcast BroadcastConfig

	// UptimeURL, when set, is pinged by the maintenance scheduler.
	UptimeURL string

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		Bot: BotConfig{
			Token:          getenv("BOT_TOKEN", ""),
			Name:           getenv("BOT_NAME", ""),
			Channel:        getenv("CHANNEL_USERNAME", ""),
			WebhookSecret:  getenv("WEBHOOK_SECRET", ""),
			SharesRequired: getint("SHARES_REQUIRED", 2),
			Cooldown:       getdur("COOLDOWN", 120*time.Second),
			PredictionLead: getdur("PREDICTION_LEAD", 3*time.Minute),
			Timezone:       getenv("TIMEZONE", "Asia/Kolkata"),
		},

		DB: DBConfig{
			URL:              getenv("DATABASE_URL", ""),
			Path:             getenv("DB_PATH", "app.db"),
			MinConns:         getint("DB_POOL_MIN", 1),
			MaxConns:         getint("DB_POOL_MAX", 10),
			ConnectTimeout:   getdur("DB_CONNECT_TIMEOUT", 5*time.Second),
			StatementTimeout: getdur("DB_STATEMENT_TIMEOUT", 5*time.Second),
			IdleTimeout:      getdur("DB_IDLE_TIMEOUT", time.Hour),
			MaxAttempts:      getint("DB_INIT_ATTEMPTS", 3),
		},

		Cache: CacheConfig{
			MembershipTTL: getdur("MEMBERSHIP_CACHE_TTL", 30*time.Minute),
			MembershipCap: getint("MEMBERSHIP_CACHE_SIZE", 5000),
			ReferralTTL:   getdur("REFERRAL_CACHE_TTL", time.Hour),
			ReferralCap:   getint("REFERRAL_CACHE_SIZE", 5000),
		},

		Broadcast: BroadcastConfig{
			BatchSize: getint("BROADCAST_BATCH_SIZE", 30),
			Interval:  getdur("BROADCAST_INTERVAL", time.Second),
		},

		UptimeURL: getenv("UPTIME_URL", ""),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-prediction-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Bot.Channel != "" && !strings.HasPrefix(cfg.Bot.Channel, "@") {
		cfg.Bot.Channel = "@" + cfg.Bot.Channel
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.Bot.Token) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if strings.TrimSpace(cfg.Bot.Channel) == "" {
		return cfg, errors.New("CHANNEL_USERNAME must not be empty")
	}
	if strings.TrimSpace(cfg.Bot.WebhookSecret) == "" {
		return cfg, errors.New("WEBHOOK_SECRET must not be empty")
	}
	if cfg.Bot.SharesRequired < 0 {
		return cfg, errors.New("SHARES_REQUIRED must be >= 0")
	}
	if cfg.Bot.Cooldown < 0 {
		return cfg, errors.New("COOLDOWN must be >= 0")
	}
	if _, err := time.LoadLocation(cfg.Bot.Timezone); err != nil {
		return cfg, errors.New("TIMEZONE must be a valid IANA zone name")
	}
	if cfg.DB.URL == "" && strings.TrimSpace(cfg.DB.Path) == "" {
		return cfg, errors.New("one of DATABASE_URL or DB_PATH must be set")
	}
	if cfg.DB.MinConns < 1 || cfg.DB.MaxConns < cfg.DB.MinConns {
		return cfg, errors.New("DB_POOL_MIN must be >= 1 and DB_POOL_MAX >= DB_POOL_MIN")
	}
	if cfg.DB.MaxAttempts < 1 {
		return cfg, errors.New("DB_INIT_ATTEMPTS must be >= 1")
	}
	if cfg.Cache.MembershipTTL <= 0 || cfg.Cache.ReferralTTL <= 0 {
		return cfg, errors.New("cache TTLs must be positive durations")
	}
	if cfg.Cache.MembershipCap < 1 || cfg.Cache.ReferralCap < 1 {
		return cfg, errors.New("cache sizes must be >= 1")
	}
	if cfg.Broadcast.BatchSize < 1 {
		return cfg, errors.New("BROADCAST_BATCH_SIZE must be >= 1")
	}
	if cfg.Broadcast.Interval < 0 {
		return cfg, errors.New("BROADCAST_INTERVAL must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Driver returns the storage driver implied by the database settings:
// postgres when DATABASE_URL is set, sqlite otherwise.
func (c DBConfig) Driver() string {
	if c.URL != "" {
		return "postgres"
	}
	return "sqlite"
}

// DSN returns the connection string for the selected driver.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Path
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
