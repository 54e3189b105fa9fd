package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	StoreDriver       string
	IdempotencyDriver string

	// RateLimitMax is the number of mutating requests per client per minute; 0 disables it.
	RateLimitMax int
	CORSOrigins  string

	DB     DBConfig
	Redis  RedisConfig
	Ledger LedgerConfig
}

// DBConfig holds connection and pool settings for PostgreSQL.
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LockTimeout     time.Duration
}

// DSN renders the key/value connection string understood by the postgres driver.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// LedgerConfig tunes the transfer engine and the idempotency guard.
type LedgerConfig struct {
	MaxRetries       int
	RetryBackoff     time.Duration
	TxTimeout        time.Duration
	IdempotencyTTL   time.Duration
	IdempotencyLease time.Duration
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

func defaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("IDEMPOTENCY_STORE", DriverRedis)
	v.SetDefault("RATE_LIMIT_MAX", 120)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ledger")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME", time.Hour)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 30*time.Minute)
	v.SetDefault("DB_LOCK_TIMEOUT", 5*time.Second)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LEDGER_MAX_RETRIES", 2)
	v.SetDefault("LEDGER_RETRY_BACKOFF", 25*time.Millisecond)
	v.SetDefault("LEDGER_TX_TIMEOUT", 10*time.Second)
	v.SetDefault("IDEMPOTENCY_TTL", 24*time.Hour)
	v.SetDefault("IDEMPOTENCY_LEASE", 30*time.Second)
}

// Load reads the process environment into a Config. Unset keys fall back to defaults.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	return &Config{
		Env:               v.GetString("ENV"),
		Port:              v.GetString("PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		StoreDriver:       v.GetString("STORE_DRIVER"),
		IdempotencyDriver: v.GetString("IDEMPOTENCY_STORE"),
		RateLimitMax:      v.GetInt("RATE_LIMIT_MAX"),
		CORSOrigins:       v.GetString("CORS_ORIGINS"),
		DB: DBConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
			LockTimeout:     v.GetDuration("DB_LOCK_TIMEOUT"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Ledger: LedgerConfig{
			MaxRetries:       v.GetInt("LEDGER_MAX_RETRIES"),
			RetryBackoff:     v.GetDuration("LEDGER_RETRY_BACKOFF"),
			TxTimeout:        v.GetDuration("LEDGER_TX_TIMEOUT"),
			IdempotencyTTL:   v.GetDuration("IDEMPOTENCY_TTL"),
			IdempotencyLease: v.GetDuration("IDEMPOTENCY_LEASE"),
		},
	}
}

// IsProduction checks if the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
