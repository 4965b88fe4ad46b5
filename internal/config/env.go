package config

import "os"

// ApplyEnv applies environment variable overrides to the configuration.
// Environment variables take precedence over TOML config but are overridden
// by command-line flags. The Telegram api_key is the main use case: it keeps
// the token out of the config file on shared machines.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("SMTP2TG_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("SMTP2TG_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("SMTP2TG_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SMTP2TG_API_KEY"); v != "" {
		cfg.Telegram.APIKey = v
	}
	if v := os.Getenv("SMTP2TG_API_GATEWAY"); v != "" {
		cfg.Telegram.APIGateway = v
	}

	return cfg
}
