package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port      string
		Env       string
		Timeout   time.Duration
		StaticDir string
	}

	// Database configuration. Persistence is optional: when Host or User is
	// empty the relay runs without a database and the session store degrades
	// to a no-op.
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	// Upstream n8n workflow engine
	N8N struct {
		BaseURL       string
		WebhookPath   string
		Timeout       time.Duration
		HealthTimeout time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Cache settings for history transcripts
	Cache struct {
		Enabled  bool
		TTL      time.Duration
		RedisURL string
	}

	// OpenAPI schema used for request validation
	OpenAPISchema string
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "3000")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.StaticDir = getEnvString("STATIC_DIR", "public")

		// Database config. Host and user carry no defaults on purpose:
		// either one missing disables persistence entirely.
		instance.Database.Host = getEnvString("DB_HOST", "")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "")
		instance.Database.Password = getEnvString("DB_PASSWORD", "")
		instance.Database.Name = getEnvString("DB_NAME", "ai_interface")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)

		// Upstream engine config
		instance.N8N.BaseURL = getEnvString("N8N_BASE_URL", "http://localhost:5678")
		instance.N8N.WebhookPath = getEnvString("N8N_WEBHOOK_PATH", "/webhook/upload-code")
		instance.N8N.Timeout = getEnvDuration("N8N_TIMEOUT", 120*time.Second)
		instance.N8N.HealthTimeout = getEnvDuration("N8N_HEALTH_TIMEOUT", 5*time.Second)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
		instance.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 25<<20) // 25MB

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Cache settings
		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", false)
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.RedisURL = getEnvString("REDIS_URL", "localhost:6379")

		instance.OpenAPISchema = getEnvString("OPENAPI_SCHEMA", "api/openapi.yaml")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// DatabaseEnabled reports whether enough database configuration is present
// to run with persistence.
func (c *Config) DatabaseEnabled() bool {
	return c.Database.Host != "" && c.Database.User != ""
}

// WebhookURL returns the full upstream webhook endpoint.
func (c *Config) WebhookURL() string {
	return strings.TrimRight(c.N8N.BaseURL, "/") + c.N8N.WebhookPath
}

// HealthURL returns the upstream liveness endpoint.
func (c *Config) HealthURL() string {
	return strings.TrimRight(c.N8N.BaseURL, "/") + "/health"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
