package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Redis     RedisConfig
	Policy    PolicyConfig
	Workers   WorkerConfig
	Dashboard DashboardConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port string
}

// RedisConfig holds the optional mapping-cache / leader-lock configuration.
// Redis is enabled only when Addr is non-empty; everything degrades gracefully
// without it.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	CacheTTL        time.Duration
	ConnectAttempts int
}

// Enabled reports whether a Redis address is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// PolicyConfig holds the env-overridable enrichment policy knobs
type PolicyConfig struct {
	DefaultDepartment string
}

// WorkerConfig holds background worker tuning
type WorkerConfig struct {
	PipelineEnabled       bool
	PipelineInterval      time.Duration
	PipelineBatchSize     int
	SLAEnabled            bool
	SLAInterval           time.Duration
	SLAScanLimit          int
	NotificationEnabled   bool
	NotificationInterval  time.Duration
	NotificationBatchSize int
	StreamInterval        time.Duration
	StatsScanLimit        int
}

// DashboardConfig holds dashboard credential and token settings
type DashboardConfig struct {
	Username     string
	Password     string // plaintext fallback for local dev; hashed at load
	PasswordHash string // bcrypt hash, preferred over Password
	JWTSecret    string
	TokenTTL     time.Duration
	WebhookURL   string // notification webhook sink; empty disables it
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnv("DB_NAME", "civicroute"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("PORT", getEnv("SERVER_PORT", "8080")),
		},
		Redis: RedisConfig{
			Addr:            os.Getenv("REDIS_ADDR"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              getEnvInt("REDIS_DB", 0),
			CacheTTL:        getEnvDuration("MAPPING_CACHE_TTL", 5*time.Minute),
			ConnectAttempts: getEnvInt("REDIS_CONNECT_ATTEMPTS", 5),
		},
		Policy: PolicyConfig{
			DefaultDepartment: getEnv("DEFAULT_DEPARTMENT", "General Grievances"),
		},
		Workers: WorkerConfig{
			PipelineEnabled:       getEnvBool("PIPELINE_WORKER_ENABLED", true),
			PipelineInterval:      getEnvDuration("PIPELINE_WORKER_INTERVAL", 30*time.Second),
			PipelineBatchSize:     getEnvInt("PIPELINE_WORKER_BATCH_SIZE", 100),
			SLAEnabled:            getEnvBool("SLA_WORKER_ENABLED", true),
			SLAInterval:           getEnvDuration("SLA_WORKER_INTERVAL", 5*time.Minute),
			SLAScanLimit:          getEnvInt("SLA_SCAN_LIMIT", 1000),
			NotificationEnabled:   getEnvBool("NOTIFICATION_WORKER_ENABLED", true),
			NotificationInterval:  getEnvDuration("NOTIFICATION_WORKER_INTERVAL", 30*time.Second),
			NotificationBatchSize: getEnvInt("NOTIFICATION_WORKER_BATCH_SIZE", 100),
			StreamInterval:        getEnvDuration("STREAM_INTERVAL", 5*time.Second),
			StatsScanLimit:        getEnvInt("STATS_SCAN_LIMIT", 5000),
		},
		Dashboard: DashboardConfig{
			Username:     getEnv("DASHBOARD_USERNAME", "admin"),
			Password:     os.Getenv("DASHBOARD_PASSWORD"),
			PasswordHash: os.Getenv("DASHBOARD_PASSWORD_HASH"),
			JWTSecret:    getEnv("JWT_SECRET", "civicroute-dev-secret-change-in-production"),
			TokenTTL:     getEnvDuration("DASHBOARD_TOKEN_TTL", 12*time.Hour),
			WebhookURL:   os.Getenv("NOTIFY_WEBHOOK_URL"),
		},
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable ("30s", "5m") or returns
// a default value. Bare integers are read as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
