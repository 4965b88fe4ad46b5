package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath string
	Hostname   string
	LogLevel   string
	Listen     string
	Default    int64
	Unknown    string
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./smtp2tg.toml", "Path to configuration file")
	flag.StringVar(&f.Hostname, "hostname", "", "Server hostname for the SMTP banner")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.Listen, "listen", "", "Listen address")
	flag.Int64Var(&f.Default, "default", 0, "Default chat id for unknown recipients")
	flag.StringVar(&f.Unknown, "unknown", "", "Unknown recipient policy (relay or deny)")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config.
// A missing file is an error: the relay cannot run without at least an
// api_key and a recipients table.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig Config
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	return mergeConfig(cfg, fileConfig), nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero/non-empty flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Hostname != "" {
		cfg.Hostname = f.Hostname
	}

	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if f.Listen != "" {
		cfg.Listen = f.Listen
	}

	if f.Default != 0 {
		cfg.Default = f.Default
	}

	if f.Unknown != "" {
		cfg.Unknown = UnknownPolicy(f.Unknown)
	}

	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies environment and flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	cfg = ApplyEnv(cfg)
	return ApplyFlags(cfg, f), nil
}

// mergeConfig merges non-zero values from src into dst.
func mergeConfig(dst, src Config) Config {
	if src.Hostname != "" {
		dst.Hostname = src.Hostname
	}

	if src.Listen != "" {
		dst.Listen = src.Listen
	}

	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	if len(src.Fields) > 0 {
		dst.Fields = src.Fields
	}

	if len(src.Domains) > 0 {
		dst.Domains = src.Domains
	}

	if src.Unknown != "" {
		dst.Unknown = src.Unknown
	}

	if src.Default != 0 {
		dst.Default = src.Default
	}

	if len(src.Recipients) > 0 {
		dst.Recipients = src.Recipients
	}

	if src.Telegram.APIKey != "" {
		dst.Telegram.APIKey = src.Telegram.APIKey
	}

	if src.Telegram.APIGateway != "" {
		dst.Telegram.APIGateway = src.Telegram.APIGateway
	}

	if src.Telegram.Timeout != "" {
		dst.Telegram.Timeout = src.Telegram.Timeout
	}

	if src.Delivery.MaxInflight > 0 {
		dst.Delivery.MaxInflight = src.Delivery.MaxInflight
	}

	if src.Delivery.MaxAttempts > 0 {
		dst.Delivery.MaxAttempts = src.Delivery.MaxAttempts
	}

	if src.Delivery.RetryBase != "" {
		dst.Delivery.RetryBase = src.Delivery.RetryBase
	}

	if src.Delivery.RetryCap != "" {
		dst.Delivery.RetryCap = src.Delivery.RetryCap
	}

	if src.Delivery.QueueDepth > 0 {
		dst.Delivery.QueueDepth = src.Delivery.QueueDepth
	}

	if src.Limits.MaxMessageSize > 0 {
		dst.Limits.MaxMessageSize = src.Limits.MaxMessageSize
	}

	if src.Limits.MaxRecipients > 0 {
		dst.Limits.MaxRecipients = src.Limits.MaxRecipients
	}

	if src.Timeouts.Connection != "" {
		dst.Timeouts.Connection = src.Timeouts.Connection
	}

	if src.Timeouts.Command != "" {
		dst.Timeouts.Command = src.Timeouts.Command
	}

	if src.Metrics.Enabled {
		dst.Metrics.Enabled = src.Metrics.Enabled
	}

	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}

	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}

	return dst
}
