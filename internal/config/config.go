package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is only acceptable outside prod.
const DefaultJWTSecret = "trakset-dev-secret"

type Config struct {
	Port string

	DBHost    string
	DBPort    string
	DBName    string
	DBUser    string
	DBPass    string
	DBSSLMode string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	JWTSecret string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string

	// JWTExpireHours is the token lifetime in hours (default 24). Set via JWT_EXPIRE_HOURS.
	JWTExpireHours int

	// TransferTimeout is the recency window after a transfer during which
	// the recipient is offered cancellation. Set in hours via TRANSFER_TIMEOUT.
	TransferTimeout time.Duration

	// SearchThreshold is the minimum trigram similarity for a search match.
	SearchThreshold float64

	// FallbackHolder is the username that takes custody of assets whose holder is removed.
	FallbackHolder string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string

	NotifyWorkers   int
	NotifyQueueSize int

	DraftNoteRetention time.Duration
	DraftPurgeCron     string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string
	LogLevel  string

	// BaseURL is the externally reachable root used to build transfer links.
	BaseURL string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost:    getEnv("DB_HOST", "localhost"),
		DBPort:    getEnv("DB_PORT", "5432"),
		DBName:    getEnv("DB_NAME", "trakset"),
		DBUser:    getEnv("DB_USER", "trakset"),
		DBPass:    getEnv("DB_PASS", "trakset"),
		DBSSLMode: getEnv("DB_SSLMODE", "disable"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		JWTSecret:      getEnv("JWT_SECRET", DefaultJWTSecret),
		Env:            getEnv("ENV", "dev"),
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),

		TransferTimeout: time.Duration(getEnvInt("TRANSFER_TIMEOUT", 1)) * time.Hour,
		SearchThreshold: getEnvFloat("SEARCH_THRESHOLD", 0.2),
		FallbackHolder:  getEnv("FALLBACK_HOLDER", "admin"),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		MailFrom: getEnv("MAIL_FROM", "webmaster@localhost"),

		NotifyWorkers:   getEnvInt("NOTIFY_WORKERS", 2),
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 100),

		DraftNoteRetention: time.Duration(getEnvInt("DRAFT_NOTE_RETENTION_HOURS", 168)) * time.Hour,
		DraftPurgeCron:     getEnv("DRAFT_PURGE_CRON", "@hourly"),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		BaseURL: strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
	}
}

// Validate rejects configurations that must not reach a running server.
func (c Config) Validate() error {
	if c.Env == "prod" && (c.JWTSecret == "" || c.JWTSecret == DefaultJWTSecret) {
		return errors.New("JWT_SECRET must be set to a non-default value when ENV=prod")
	}
	if c.TransferTimeout <= 0 {
		return errors.New("TRANSFER_TIMEOUT must be positive")
	}
	if c.SearchThreshold < 0 || c.SearchThreshold > 1 {
		return errors.New("SEARCH_THRESHOLD must be between 0 and 1")
	}
	if c.FallbackHolder == "" {
		return errors.New("FALLBACK_HOLDER must not be empty")
	}
	return nil
}

// DatabaseURL returns the postgres URL form of the connection settings,
// as expected by the migration driver.
func (c Config) DatabaseURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPass + "@" + c.DBHost + ":" + c.DBPort +
		"/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
