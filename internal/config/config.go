package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the complete application configuration. Layers, lowest
// precedence first: built-in defaults, user YAML file, .env and legacy
// environment names, prefixed environment variables, runtime overrides.
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
	WireGuard WireGuardConfig `mapstructure:"wireguard"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`

	// Workers bounds how many inbound events are processed concurrently.
	Workers int `mapstructure:"workers"`
}

// TelegramConfig configures the Bot API client and long polling.
type TelegramConfig struct {
	Token          string        `mapstructure:"token"`
	APIURL         string        `mapstructure:"api_url"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	SendRate       float64       `mapstructure:"send_rate"`
	SendBurst      int           `mapstructure:"send_burst"`
}

// AuthConfig holds the allow-list. An empty list admits everyone.
type AuthConfig struct {
	AllowedUsers []int64 `mapstructure:"allowed_users"`
	// AdminID names the administrator explicitly. Zero falls back to the
	// first allow-list entry.
	AdminID int64 `mapstructure:"admin_id"`
}

// Rate limiter modes
const (
	RateLimitModeProgressive = "progressive"
	RateLimitModeSliding     = "sliding"
)

// RateLimitConfig configures the per-identity command limiter.
type RateLimitConfig struct {
	Mode              string        `mapstructure:"mode"`
	CommandsPerMinute int           `mapstructure:"commands_per_minute"`
	Window            time.Duration `mapstructure:"window"`
	BasePenalty       time.Duration `mapstructure:"base_penalty"`
	MaxPenalty        time.Duration `mapstructure:"max_penalty"`
	CleanPeriod       time.Duration `mapstructure:"clean_period"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

// RetryConfig configures outbound send retries.
type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// WireGuardConfig configures the external wg-manager script.
type WireGuardConfig struct {
	ManagerPath    string        `mapstructure:"manager_path"`
	Interface      string        `mapstructure:"interface"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	MaxClients     int           `mapstructure:"max_clients"`
}

// ServerConfig contains health HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AdminToken enables POST /admin/signal with bearer auth when set.
	AdminToken string `mapstructure:"admin_token"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
	// Profile selects the logging complexity level: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AdminIdentity returns the configured administrator, or 0 when none applies.
func (a AuthConfig) AdminIdentity() int64 {
	if a.AdminID != 0 {
		return a.AdminID
	}
	if len(a.AllowedUsers) > 0 {
		return a.AllowedUsers[0]
	}
	return 0
}

// Validate checks values the runtime cannot work around.
func (c *Config) Validate() error {
	var problems []string

	switch c.RateLimit.Mode {
	case RateLimitModeProgressive, RateLimitModeSliding:
	default:
		problems = append(problems, fmt.Sprintf("rate_limit.mode must be %q or %q, got %q", RateLimitModeProgressive, RateLimitModeSliding, c.RateLimit.Mode))
	}
	if c.RateLimit.CommandsPerMinute < 1 {
		problems = append(problems, "rate_limit.commands_per_minute must be at least 1")
	}
	if c.Retry.MaxRetries < 1 {
		problems = append(problems, "retry.max_retries must be at least 1")
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		problems = append(problems, "retry.max_delay must not be below retry.initial_delay")
	}
	if c.Telegram.RequestTimeout <= c.Telegram.PollTimeout {
		problems = append(problems, "telegram.request_timeout must exceed telegram.poll_timeout")
	}
	if c.WireGuard.CommandTimeout <= 0 {
		problems = append(problems, "wireguard.command_timeout must be positive")
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be at least 1")
	}
	for _, id := range c.Auth.AllowedUsers {
		if id <= 0 {
			problems = append(problems, fmt.Sprintf("auth.allowed_users contains invalid id %d", id))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
