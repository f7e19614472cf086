/*
Package config loads process configuration and reference-data seeds.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory (optional, via godotenv)
  3. Process environment
  4. Command-line flags (applied by cmd/server)

VARIABLES:
  PORT                HTTP port (default 8080)
  DB_DRIVER           "sqlite3" or "postgres" (default sqlite3)
  DATABASE_URL        file path for sqlite3, DSN for postgres
  DEFAULT_HOURS_CODE  hours code used when a ride names none (default "normal")
  SEED_FILE           optional YAML reference-data seed, see seed.go
  CORS_ORIGINS        comma separated allowed origins
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/warp/ride-engine/generic"
)

const (
	DefaultPort        = 8080
	DefaultDriver      = "sqlite3"
	DefaultDatabaseURL = "ride-engine.db"
	DefaultHoursCode   = "normal"
)

// Config is the resolved process configuration.
type Config struct {
	Port             int
	DBDriver         string
	DatabaseURL      string
	DefaultHoursCode generic.HoursCodeID
	SeedFile         string
	CORSOrigins      []string
}

// Load reads .env (a missing file is fine) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, typically os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:             DefaultPort,
		DBDriver:         DefaultDriver,
		DatabaseURL:      DefaultDatabaseURL,
		DefaultHoursCode: DefaultHoursCode,
		CORSOrigins:      []string{"http://localhost:5173", "http://localhost:8080"},
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, &generic.ValidationError{Field: "PORT", Reason: fmt.Sprintf("invalid port %q", v)}
		}
		cfg.Port = port
	}

	if v := getenv("DB_DRIVER"); v != "" {
		switch v {
		case "sqlite3", "postgres":
			cfg.DBDriver = v
		default:
			return nil, &generic.ValidationError{Field: "DB_DRIVER", Reason: fmt.Sprintf("unsupported driver %q", v)}
		}
	}

	if v := getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	} else if cfg.DBDriver == "postgres" {
		return nil, &generic.ValidationError{Field: "DATABASE_URL", Reason: "required for postgres"}
	}

	if v := getenv("DEFAULT_HOURS_CODE"); v != "" {
		cfg.DefaultHoursCode = generic.HoursCodeID(v)
	}
	cfg.SeedFile = getenv("SEED_FILE")

	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	return cfg, nil
}
