// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with minimal setup.
// The only hard requirement is the bot API key; use ValidateBotReady before connecting.
package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	// Bot credential, sent as X-Bot-Token to the directory API and inside the
	// authenticate frame on the gateway.
	BotAPIKey string

	// Bot Directory API base, e.g. http://localhost:3001/v1/bots
	DirectoryBaseURL string

	// Gateway socket endpoint, e.g. ws://localhost:3000/socket
	SocketURL string

	// Template provider base, e.g. https://api.memegen.link
	MemegenBaseURL string

	// Command prefix recognized in channel messages.
	CommandPrefix string

	// Template catalog freshness window.
	TemplateCacheTTL time.Duration

	// Budget for every outbound HTTP call and gateway write.
	HTTPTimeout time.Duration

	// Reconnect backoff bounds.
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration

	// Sidecar HTTP listen address.
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if the
// bot key is missing; use ValidateBotReady() before any connection attempt.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.BotAPIKey = os.Getenv("BOT_API_KEY")

	cfg.DirectoryBaseURL = os.Getenv("BASE_URL")
	if cfg.DirectoryBaseURL == "" {
		cfg.DirectoryBaseURL = "http://localhost:3001/v1/bots"
	}

	cfg.SocketURL = os.Getenv("SOCKET_URL")
	if cfg.SocketURL == "" {
		cfg.SocketURL = "ws://localhost:3000/socket"
	}

	cfg.MemegenBaseURL = os.Getenv("MEMEGEN_API")
	if cfg.MemegenBaseURL == "" {
		cfg.MemegenBaseURL = "https://api.memegen.link"
	}

	cfg.CommandPrefix = os.Getenv("COMMAND_PREFIX")
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!meme"
	}

	cfg.TemplateCacheTTL = 5 * time.Minute
	if v := os.Getenv("TEMPLATE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid TEMPLATE_CACHE_TTL: %q", v)
		}
		cfg.TemplateCacheTTL = d
	}

	cfg.HTTPTimeout = 10 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.HTTPTimeout = d
		}
	}

	cfg.ReconnectInitialDelay = time.Second
	if v := os.Getenv("RECONNECT_INITIAL_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ReconnectInitialDelay = d
		}
	}
	cfg.ReconnectMaxDelay = 30 * time.Second
	if v := os.Getenv("RECONNECT_MAX_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ReconnectMaxDelay = d
		}
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateBotReady checks the required credential before any connection attempt.
func (c *Config) ValidateBotReady() error {
	if c.BotAPIKey == "" {
		return fmt.Errorf("missing bot env: require BOT_API_KEY")
	}
	return nil
}
