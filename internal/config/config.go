package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config permit-data maintenance tooling configuration.
// Everything comes from environment variables so the cmd binaries can run
// against dev, staging and prod without code changes.
type Config struct {
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Civic    CivicConfig
	Registry RegistryConfig

	// EnrichWindowDays is the re-enrichment cool-down in days. Records
	// whose last_updated is younger than this are never re-selected.
	EnrichWindowDays int
}

// DatabaseConfig PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// CivicConfig open-data (Socrata) API settings for owner lookups.
type CivicConfig struct {
	BaseURL  string // e.g. "https://data.cityofnewyork.us"
	AppToken string // optional; raises the anonymous rate limit
}

// RegistryConfig corporate registry search API settings.
type RegistryConfig struct {
	BaseURL string
	Token   string
}

func Load() *Config {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "permits")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Civic.BaseURL = getEnv("CIVIC_API_BASE", "https://data.cityofnewyork.us")
	cfg.Civic.AppToken = getEnv("CIVIC_APP_TOKEN", "")

	cfg.Registry.BaseURL = getEnv("REGISTRY_API_BASE", "https://api.opencorporates.com")
	cfg.Registry.Token = getEnv("REGISTRY_API_TOKEN", "")

	cfg.EnrichWindowDays = parseInt(getEnv("ENRICH_WINDOW_DAYS", "30"), 30)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
