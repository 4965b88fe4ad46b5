// Package config provides configuration management for the smtp2tg relay.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// UnknownPolicy defines what happens to mail addressed to a recipient that is
// not present in the routing table.
type UnknownPolicy string

const (
	// UnknownRelay forwards mail for unknown recipients to the default chat.
	UnknownRelay UnknownPolicy = "relay"
	// UnknownDeny rejects unknown recipients at RCPT time.
	UnknownDeny UnknownPolicy = "deny"
)

// Config holds the complete relay configuration.
type Config struct {
	Hostname   string           `toml:"hostname"`
	Listen     string           `toml:"listen"`
	LogLevel   string           `toml:"log_level"`
	Fields     []string         `toml:"fields"`
	Domains    []string         `toml:"domains"`
	Unknown    UnknownPolicy    `toml:"unknown"`
	Default    int64            `toml:"default"`
	Recipients map[string]int64 `toml:"recipients"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Delivery   DeliveryConfig   `toml:"delivery"`
	Limits     LimitsConfig     `toml:"limits"`
	Timeouts   TimeoutsConfig   `toml:"timeouts"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// TelegramConfig holds Telegram Bot API client settings.
type TelegramConfig struct {
	APIKey     string `toml:"api_key"`
	APIGateway string `toml:"api_gateway"`
	Timeout    string `toml:"timeout"`
}

// DeliveryConfig tunes the delivery dispatcher.
type DeliveryConfig struct {
	MaxInflight int    `toml:"max_inflight"`
	MaxAttempts int    `toml:"max_attempts"`
	RetryBase   string `toml:"retry_base"`
	RetryCap    string `toml:"retry_cap"`
	QueueDepth  int    `toml:"queue_depth"`
}

// LimitsConfig defines resource limits for the SMTP service.
type LimitsConfig struct {
	MaxMessageSize int `toml:"max_message_size"`
	MaxRecipients  int `toml:"max_recipients"`
}

// TimeoutsConfig defines SMTP timeout durations.
type TimeoutsConfig struct {
	Connection string `toml:"connection"`
	Command    string `toml:"command"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Default returns a Config with the stock defaults. The domain list contains
// "localhost" plus the machine's hostname when it can be determined.
func Default() Config {
	domains := []string{"localhost"}
	if name, err := os.Hostname(); err == nil && name != "" {
		domains = append(domains, strings.ToLower(name))
	}

	return Config{
		Hostname: "smtp.2.tg",
		Listen:   "0.0.0.0:1025",
		LogLevel: "info",
		Fields:   []string{"date", "from", "subject"},
		Domains:  domains,
		Unknown:  UnknownRelay,
		Telegram: TelegramConfig{
			APIGateway: "https://api.telegram.org",
			Timeout:    "30s",
		},
		Delivery: DeliveryConfig{
			MaxInflight: 4,
			MaxAttempts: 6,
			RetryBase:   "1s",
			RetryCap:    "5m",
			QueueDepth:  128,
		},
		Limits: LimitsConfig{
			MaxMessageSize: 26214400, // 25 MB
			MaxRecipients:  100,
		},
		Timeouts: TimeoutsConfig{
			Connection: "5m",
			Command:    "1m",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9100",
			Path:    "/metrics",
		},
	}
}

// domainPattern matches a lowercase hostname label sequence.
var domainPattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}

	if c.Listen == "" {
		return errors.New("listen address is required")
	}

	switch c.Unknown {
	case UnknownRelay, UnknownDeny:
	default:
		return fmt.Errorf("unknown policy must be %q or %q, got %q", UnknownRelay, UnknownDeny, c.Unknown)
	}

	if len(c.Domains) == 0 {
		return errors.New("at least one domain is required")
	}

	for _, d := range c.Domains {
		if !domainPattern.MatchString(strings.ToLower(d)) {
			return fmt.Errorf("invalid domain %q", d)
		}
	}

	if c.Telegram.APIKey == "" {
		return errors.New("telegram api_key is required")
	}

	if c.Telegram.APIGateway == "" {
		return errors.New("telegram api_gateway is required")
	}

	if c.Telegram.Timeout != "" {
		if _, err := time.ParseDuration(c.Telegram.Timeout); err != nil {
			return fmt.Errorf("invalid telegram timeout: %w", err)
		}
	}

	if c.Delivery.MaxInflight <= 0 {
		return errors.New("delivery max_inflight must be positive")
	}

	if c.Delivery.MaxAttempts <= 0 {
		return errors.New("delivery max_attempts must be positive")
	}

	if c.Delivery.QueueDepth <= 0 {
		return errors.New("delivery queue_depth must be positive")
	}

	for _, d := range []struct{ name, value string }{
		{"retry_base", c.Delivery.RetryBase},
		{"retry_cap", c.Delivery.RetryCap},
	} {
		if d.value != "" {
			if _, err := time.ParseDuration(d.value); err != nil {
				return fmt.Errorf("invalid delivery %s: %w", d.name, err)
			}
		}
	}

	if c.Limits.MaxMessageSize <= 0 {
		return errors.New("max_message_size must be positive")
	}

	if c.Limits.MaxRecipients <= 0 {
		return errors.New("max_recipients must be positive")
	}

	if c.Timeouts.Connection != "" {
		if _, err := time.ParseDuration(c.Timeouts.Connection); err != nil {
			return fmt.Errorf("invalid connection timeout: %w", err)
		}
	}

	if c.Timeouts.Command != "" {
		if _, err := time.ParseDuration(c.Timeouts.Command); err != nil {
			return fmt.Errorf("invalid command timeout: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}

// APITimeout returns the Telegram request timeout as a time.Duration.
// Returns 30 seconds if not configured or invalid.
func (c *TelegramConfig) APITimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// RetryBaseDuration returns the initial retry backoff interval.
// Returns 1 second if not configured or invalid.
func (c *DeliveryConfig) RetryBaseDuration() time.Duration {
	return parseDuration(c.RetryBase, time.Second)
}

// RetryCapDuration returns the maximum retry backoff interval.
// Returns 5 minutes if not configured or invalid.
func (c *DeliveryConfig) RetryCapDuration() time.Duration {
	return parseDuration(c.RetryCap, 5*time.Minute)
}

// ConnectionTimeout returns the connection timeout as a time.Duration.
// Returns 5 minutes if not configured or invalid.
func (c *TimeoutsConfig) ConnectionTimeout() time.Duration {
	return parseDuration(c.Connection, 5*time.Minute)
}

// CommandTimeout returns the command timeout as a time.Duration.
// Returns 1 minute if not configured or invalid.
func (c *TimeoutsConfig) CommandTimeout() time.Duration {
	return parseDuration(c.Command, time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
