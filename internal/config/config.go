// Package config loads environment-based configuration for twitch-bridge.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for twitch-bridge.
type Config struct {
	// Port the local OAuth callback listener binds to. Must match the
	// redirect URI registered on the Twitch developer console
	// (http://localhost:<port>/auth).
	CallbackPort int `env:"TWITCH_CALLBACK_PORT" envDefault:"3000"`

	// Path to the bbolt database caching access/refresh tokens.
	// Defaults to ~/.twitch-bridge/tokens.db when empty.
	TokenPath string `env:"TWITCH_TOKEN_PATH"`

	// YAML file holding client_id/client_secret. The daemon watches it
	// and restarts the authorization flow whenever it changes.
	CredentialsFile string `env:"TWITCH_CREDENTIALS_FILE" envDefault:"credentials.yaml"`

	// Helix rate limit applied across all gateway operations.
	RateLimitCalls  int           `env:"TWITCH_RATE_LIMIT_CALLS" envDefault:"30"`
	RateLimitWindow time.Duration `env:"TWITCH_RATE_LIMIT_WINDOW" envDefault:"60s"`

	// Poll intervals for the display-refresh loops.
	ViewerInterval     time.Duration `env:"VIEWER_UPDATE_INTERVAL" envDefault:"10s"`
	ChatModeInterval   time.Duration `env:"CHAT_MODE_UPDATE_INTERVAL" envDefault:"5s"`
	AdScheduleInterval time.Duration `env:"AD_SCHEDULE_FETCH_INTERVAL" envDefault:"30s"`

	// Environment controls log format; LogLevel the verbosity.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// EnableEventSub turns on the EventSub websocket listener for
	// stream online/offline notifications.
	EnableEventSub bool `env:"ENABLE_EVENTSUB" envDefault:"false"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the client secret to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.TokenPath == "" {
		path, err := DefaultTokenPath()
		if err != nil {
			return nil, err
		}

		cfg.TokenPath = path
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve the credentials file to an absolute path so the fsnotify
	// watcher keys events consistently regardless of working directory.
	absCreds, err := filepath.Abs(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials file to absolute path: %w", err)
	}

	cfg.CredentialsFile = absCreds

	return cfg, nil
}

func (c *Config) validate() error {
	if c.CallbackPort <= 0 || c.CallbackPort > 65535 {
		return fmt.Errorf("TWITCH_CALLBACK_PORT must be in 1-65535, got %d", c.CallbackPort)
	}

	if c.RateLimitCalls <= 0 {
		return fmt.Errorf("TWITCH_RATE_LIMIT_CALLS must be positive, got %d", c.RateLimitCalls)
	}

	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("TWITCH_RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}

	for name, d := range map[string]time.Duration{
		"VIEWER_UPDATE_INTERVAL":     c.ViewerInterval,
		"CHAT_MODE_UPDATE_INTERVAL":  c.ChatModeInterval,
		"AD_SCHEDULE_FETCH_INTERVAL": c.AdScheduleInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	return nil
}

// DefaultTokenPath returns the default token database location:
// ~/.twitch-bridge/tokens.db
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".twitch-bridge", "tokens.db"), nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
