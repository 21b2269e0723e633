/*
Package config loads server configuration.

SOURCES (later wins):
  1. Defaults
  2. .env file in the working directory (optional, via godotenv)
  3. FINLEDGER_* environment variables
  4. Command-line flags

VARIABLES:
  FINLEDGER_PORT                   HTTP port (8080)
  FINLEDGER_DB                     SQLite path, ":memory:" allowed (finance.db)
  FINLEDGER_LOG_LEVEL              zerolog level (info)
  FINLEDGER_LOG_FORMAT             console | json (console)
  FINLEDGER_STRICT                 roll back on any ledger step failure (true)
  FINLEDGER_RECURRING_INTERVAL     recurring transaction check (1h)
  FINLEDGER_BUDGET_ALERT_INTERVAL  budget alert check (24h)
  FINLEDGER_NOTIFY_BUFFER          notification queue size (256)
  FINLEDGER_CORS_ORIGINS           comma-separated allowed origins (*)
*/
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "FINLEDGER_"

// Config is the server configuration.
type Config struct {
	Port                int
	DBPath              string
	LogLevel            string
	LogFormat           string
	Strict              bool
	RecurringInterval   time.Duration
	BudgetAlertInterval time.Duration
	NotifyBuffer        int
	AllowedOrigins      []string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:                8080,
		DBPath:              "finance.db",
		LogLevel:            "info",
		LogFormat:           "console",
		Strict:              true,
		RecurringInterval:   time.Hour,
		BudgetAlertInterval: 24 * time.Hour,
		NotifyBuffer:        256,
		AllowedOrigins:      []string{"*"},
	}
}

// Load builds the configuration from .env, the environment and args
// (without the program name).
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse(args, os.LookupEnv)
}

// Parse builds the configuration from lookup and args. It never reads .env.
func Parse(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	origins := strings.Join(cfg.AllowedOrigins, ",")
	flags := flag.NewFlagSet("server", flag.ContinueOnError)
	flags.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console, json)")
	flags.BoolVar(&cfg.Strict, "strict", cfg.Strict, "roll back a transaction when any ledger step fails")
	flags.DurationVar(&cfg.RecurringInterval, "recurring-interval", cfg.RecurringInterval, "recurring transaction check interval")
	flags.DurationVar(&cfg.BudgetAlertInterval, "budget-alert-interval", cfg.BudgetAlertInterval, "budget alert check interval")
	flags.IntVar(&cfg.NotifyBuffer, "notify-buffer", cfg.NotifyBuffer, "notification queue size")
	flags.StringVar(&origins, "cors-origins", origins, "comma-separated allowed CORS origins")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = splitList(origins)

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var err error
	if v, ok := get("PORT"); ok {
		if c.Port, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
	}
	if v, ok := get("DB"); ok {
		c.DBPath = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := get("STRICT"); ok {
		if c.Strict, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("%sSTRICT: %w", envPrefix, err)
		}
	}
	if v, ok := get("RECURRING_INTERVAL"); ok {
		if c.RecurringInterval, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("%sRECURRING_INTERVAL: %w", envPrefix, err)
		}
	}
	if v, ok := get("BUDGET_ALERT_INTERVAL"); ok {
		if c.BudgetAlertInterval, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("%sBUDGET_ALERT_INTERVAL: %w", envPrefix, err)
		}
	}
	if v, ok := get("NOTIFY_BUFFER"); ok {
		if c.NotifyBuffer, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("%sNOTIFY_BUFFER: %w", envPrefix, err)
		}
	}
	if v, ok := get("CORS_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	if c.RecurringInterval <= 0 || c.BudgetAlertInterval <= 0 {
		return errors.New("scheduler intervals must be positive")
	}
	if c.NotifyBuffer <= 0 {
		return fmt.Errorf("invalid notification buffer %d", c.NotifyBuffer)
	}
	return nil
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
