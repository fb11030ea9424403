/*
Package config loads server configuration from the environment.

A .env file is honored when present (godotenv); real environment variables
win over it. Every knob has a default so the server starts with no
configuration at all.

VARIABLES:
  PORT                 HTTP port                       (default 8080)
  DB_PATH              SQLite database path            (default hr.db)
  TZ_OFFSET_HOURS      fixed org timezone offset, UTC  (default 7)
  DEFAULT_SHIFT_START  seed-user shift start hour      (default 9)
  DEFAULT_SHIFT_END    seed-user shift end hour        (default 17)
  LOG_LEVEL            logrus level                    (default info)
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the resolved server configuration.
type Config struct {
	Port              int
	DBPath            string
	TZOffsetHours     int
	DefaultShiftStart int
	DefaultShiftEnd   int
	LogLevel          string
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	// Missing .env is fine; env vars or defaults cover everything.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              envInt("PORT", 8080),
		DBPath:            envStr("DB_PATH", "hr.db"),
		TZOffsetHours:     envInt("TZ_OFFSET_HOURS", 7),
		DefaultShiftStart: envInt("DEFAULT_SHIFT_START", 9),
		DefaultShiftEnd:   envInt("DEFAULT_SHIFT_END", 17),
		LogLevel:          envStr("LOG_LEVEL", "info"),
	}

	if cfg.TZOffsetHours < -12 || cfg.TZOffsetHours > 14 {
		return nil, fmt.Errorf("TZ_OFFSET_HOURS out of range: %d", cfg.TZOffsetHours)
	}
	return cfg, nil
}

// Zone returns the organization's fixed-offset timezone.
func (c *Config) Zone() *time.Location {
	name := fmt.Sprintf("UTC%+d", c.TZOffsetHours)
	return time.FixedZone(name, c.TZOffsetHours*3600)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
