package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DBPath         string
	LogLevel       string
	LogFormat      string
	JWTSecret      string
	JWTTTL         time.Duration
	AllowedOrigins []string
	AdminUsers     []string

	// Requests per minute: AuthRateLimit per client IP on register and
	// login, WriteRateLimit per user across all mutations.
	AuthRateLimit  int
	WriteRateLimit int

	// BackupPassphrase encrypts snapshots written by the backup command.
	// Empty writes plain SQLite files.
	BackupPassphrase string
}

const defaultJWTSecret = "dev-secret"

// Load reads an optional .env file, then the NOMNOM_* environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	ttl, err := time.ParseDuration(getEnv("NOMNOM_JWT_TTL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("parse NOMNOM_JWT_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("NOMNOM_JWT_TTL must be positive, got %s", ttl)
	}

	authLimit, err := getEnvInt("NOMNOM_AUTH_RATE_LIMIT", 10)
	if err != nil {
		return nil, err
	}
	writeLimit, err := getEnvInt("NOMNOM_WRITE_RATE_LIMIT", 300)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:           getEnv("NOMNOM_PORT", "8080"),
		DBPath:         getEnv("NOMNOM_DB_PATH", "nomnom.db"),
		LogLevel:       getEnv("NOMNOM_LOG_LEVEL", "info"),
		LogFormat:      getEnv("NOMNOM_LOG_FORMAT", "text"),
		JWTSecret:      getEnv("NOMNOM_JWT_SECRET", defaultJWTSecret),
		JWTTTL:         ttl,
		AllowedOrigins: splitList(os.Getenv("NOMNOM_ALLOWED_ORIGINS")),
		AdminUsers:     splitList(os.Getenv("NOMNOM_ADMIN_USERS")),
		AuthRateLimit:  authLimit,
		WriteRateLimit: writeLimit,

		BackupPassphrase: os.Getenv("NOMNOM_BACKUP_PASSPHRASE"),
	}, nil
}

// Warn logs settings that are fine for development but not for a real
// deployment.
func (c *Config) Warn(logger *slog.Logger) {
	if c.JWTSecret == defaultJWTSecret {
		logger.Warn("NOMNOM_JWT_SECRET not set, using development secret")
	}
	if len(c.AllowedOrigins) == 0 {
		logger.Warn("NOMNOM_ALLOWED_ORIGINS not set, websocket accepts any origin")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt parses a non-negative integer. Zero disables whatever it limits.
func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
