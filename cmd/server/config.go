package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/lavaca/ledger-engine/logger"
)

const (
	defaultListenAddr    = "localhost:8080"
	defaultLoggingLevel  = logger.LevelInfo
	defaultDatabasePath  = "lavaca.db"
	defaultSweepInterval = time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the API server will be run
	ListenAddr string

	// SQLite database path; ":memory:" for an in-memory database
	DatabasePath string

	// How often the deadline sweeper checks for overdue votes
	SweepInterval time.Duration

	// Webhook URL for outbound pool notifications; empty disables them
	WebhookURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:      defaultLoggingLevel,
		ListenAddr:    defaultListenAddr,
		DatabasePath:  defaultDatabasePath,
		SweepInterval: defaultSweepInterval,
	}
}

// Load variables from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":    setString(&c.ListenAddr),
		"DATABASE_PATH":  setString(&c.DatabasePath),
		"LOG_LEVEL":      setString(&c.LogLevel),
		"SWEEP_INTERVAL": setDuration(&c.SweepInterval),
		"WEBHOOK_URL":    setString(&c.WebhookURL),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("lavaca", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabasePath, "database", "d", c.DatabasePath, "SQLite database path (\":memory:\" for in-memory)")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.DurationVarP(&c.SweepInterval, "sweep-interval", "s", c.SweepInterval, "Vote deadline sweep interval")
	fs.StringVarP(&c.WebhookURL, "webhook", "w", c.WebhookURL, "Webhook URL for pool notifications")

	return fs.Parse(args)
}
