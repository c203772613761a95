// Package config loads database client configuration from the environment,
// honoring an optional .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds the settings for a database connection pool and the client
// behavior built on top of it.
type Config struct {
	Dialect  string
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// DSN overrides the generated connection string when set.
	DSN string

	MaxOpenConns int
	MaxIdleConns int

	// HostName labels metrics emitted for this pool.
	HostName string

	// PreferRollbackError controls which error kind surfaces when a unit of
	// work fails and the subsequent rollback also fails. When true (the
	// default), the rollback failure wins since it indicates an
	// unrecovered-state failure.
	PreferRollbackError bool

	LogLevel string
}

const (
	defaultDialect      = "sqlite"
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
)

// Load reads configuration from environment variables, first applying an
// optional .env file. Real environment variables take precedence over .env
// entries.
func Load(envFiles ...string) (*Config, error) {
	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		if len(envFiles) > 0 {
			return nil, errors.Wrap(err, "loading env file")
		}
	}

	cfg := &Config{
		Dialect:             getEnv("DB_DIALECT", defaultDialect),
		Host:                getEnv("DB_HOST", "localhost"),
		User:                os.Getenv("DB_USER"),
		Password:            os.Getenv("DB_PASSWORD"),
		Database:            os.Getenv("DB_NAME"),
		DSN:                 os.Getenv("DB_DSN"),
		HostName:            getEnv("DB_HOSTNAME", getEnv("HOSTNAME", "localhost")),
		PreferRollbackError: getEnv("DB_PREFER_ROLLBACK_ERROR", "true") != "false",
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
	}

	var err error

	if cfg.Port, err = getEnvInt("DB_PORT", 0); err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", defaultMaxOpenConns); err != nil {
		return nil, err
	}

	if cfg.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", defaultMaxIdleConns); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", key)
	}

	return n, nil
}

// ConnectionString builds a driver DSN for the configured dialect. The DSN
// field, when set, wins.
func (c *Config) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}

	switch c.Dialect {
	case "mysql", "mariadb":
		port := c.Port
		if port == 0 {
			port = 3306
		}

		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, port, c.Database)
	case "postgres", "postgresql":
		port := c.Port
		if port == 0 {
			port = 5432
		}

		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, port, c.User, c.Password, c.Database)
	default:
		// sqlite: the database name is the file path; default to in-memory.
		if c.Database == "" {
			return ":memory:"
		}

		return c.Database
	}
}
