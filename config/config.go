package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // audit time zone must resolve on minimal images

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Inference     InferenceConfig
	Cache         CacheConfig
	BotProtection BotProtectionConfig
	Scheduler     SchedulerConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	AllowedOrigins  []string
	PublicURL       string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool
}

// AuthConfig holds the external identity provider configuration
type AuthConfig struct {
	Issuer            string
	JWKSURL           string
	Audience          string
	AuthorizedParties []string
	JWKSCacheTTL      time.Duration
	SessionCookie     string
	SignInURL         string
	SignOutURL        string
	WebhookSecret     string // base64 secret, optionally prefixed with "whsec_"
	WebhookTolerance  time.Duration
}

// InferenceConfig holds the generative-AI provider configuration used for receipt scanning
type InferenceConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxImageBytes int64

	MaxResponseBytes int64
}

// CacheConfig holds the rendered-view cache configuration.
// An empty RedisURL selects the in-process generation store.
type CacheConfig struct {
	RedisURL string
	ViewTTL  time.Duration
	MaxViews int
}

// BotProtectionConfig holds the bot-mitigation middleware configuration
type BotProtectionConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
	BlockedUserAgents []string
}

// SchedulerConfig holds the recurring transaction scheduler configuration
type SchedulerConfig struct {
	Enabled bool
	Spec    string
}

// AuditConfig holds audit logger configuration
type AuditConfig struct {
	TimeZone     string
	Layout       string
	WriteTimeout time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	issuer := strings.TrimRight(getEnv("AUTH_ISSUER", ""), "/")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			AllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			PublicURL:       getEnv("PUBLIC_URL", "http://localhost:8080"),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			Issuer:            issuer,
			JWKSURL:           getEnv("AUTH_JWKS_URL", defaultJWKSURL(issuer)),
			Audience:          getEnv("AUTH_AUDIENCE", ""),
			AuthorizedParties: getEnvAsSlice("AUTH_AUTHORIZED_PARTIES", nil),
			JWKSCacheTTL:      getEnvAsDuration("AUTH_JWKS_CACHE_TTL", time.Hour),
			SessionCookie:     getEnv("AUTH_SESSION_COOKIE", "__session"),
			SignInURL:         getEnv("AUTH_SIGN_IN_URL", "/sign-in"),
			SignOutURL:        getEnv("AUTH_SIGN_OUT_URL", "/"),
			WebhookSecret:     getEnv("AUTH_WEBHOOK_SECRET", ""),
			WebhookTolerance:  getEnvAsDuration("AUTH_WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		Inference: InferenceConfig{
			APIKey:        getEnv("GEMINI_API_KEY", ""),
			BaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Model:         getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:       getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
			MaxRetries:    getEnvAsInt("GEMINI_MAX_RETRIES", 2),
			RetryDelay:    getEnvAsDuration("GEMINI_RETRY_DELAY", time.Second),
			MaxImageBytes: int64(getEnvAsInt("RECEIPT_MAX_IMAGE_BYTES", 5<<20)),

			MaxResponseBytes: int64(getEnvAsInt("GEMINI_MAX_RESPONSE_BYTES", 4<<20)),
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			ViewTTL:  getEnvAsDuration("VIEW_CACHE_TTL", 10*time.Minute),
			MaxViews: getEnvAsInt("VIEW_CACHE_MAX_ENTRIES", 2000),
		},
		BotProtection: BotProtectionConfig{
			Enabled:           getEnvAsBool("BOT_PROTECTION_ENABLED", true),
			RequestsPerSecond: getEnvAsFloat("BOT_PROTECTION_RPS", 10),
			Burst:             getEnvAsInt("BOT_PROTECTION_BURST", 30),
			BlockedUserAgents: getEnvAsSlice("BOT_PROTECTION_BLOCKED_AGENTS",
				[]string{"curl", "wget", "python-requests", "scrapy", "go-http-client", "headlesschrome"}),
		},
		Scheduler: SchedulerConfig{
			Enabled: getEnvAsBool("SCHEDULER_ENABLED", true),
			Spec:    getEnv("SCHEDULER_SPEC", "@hourly"),
		},
		Audit: AuditConfig{
			TimeZone:     getEnv("AUDIT_TIME_ZONE", "Asia/Manila"),
			Layout:       getEnv("AUDIT_TIME_LAYOUT", "January 2, 2006 3:04:05 PM"),
			WriteTimeout: getEnvAsDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.IsProduction() {
		if c.Auth.Issuer == "" {
			return fmt.Errorf("identity issuer is required in production")
		}
		if c.Inference.APIKey == "" {
			return fmt.Errorf("inference API key is required in production")
		}
	}

	if _, err := time.LoadLocation(c.Audit.TimeZone); err != nil {
		return fmt.Errorf("invalid audit time zone %q: %w", c.Audit.TimeZone, err)
	}

	if c.Scheduler.Enabled && strings.TrimSpace(c.Scheduler.Spec) == "" {
		return fmt.Errorf("scheduler spec is required when the scheduler is enabled")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as required by the migration driver
func (c *DatabaseConfig) URL() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// Location returns the audit display time zone, falling back to UTC
func (c *AuditConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func loadDatabaseConfig() DatabaseConfig {
	common := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		common.ConnectionString = dbURL
		return common
	}

	common.Host = getEnv("DB_HOST", "localhost")
	common.Port = getEnvAsInt("DB_PORT", 5432)
	common.User = getEnv("DB_USER", "terual")
	common.Password = getEnv("DB_PASSWORD", "terual")
	common.Database = getEnv("DB_NAME", "terual_accounting")
	common.SSLMode = getEnv("DB_SSLMODE", "disable")
	return common
}

func defaultJWKSURL(issuer string) string {
	if issuer == "" {
		return ""
	}
	return issuer + "/.well-known/jwks.json"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma-separated variable, dropping empty items
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
