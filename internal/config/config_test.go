package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Hostname != "smtp.2.tg" {
		t.Errorf("expected hostname 'smtp.2.tg', got %q", cfg.Hostname)
	}

	if cfg.Listen != "0.0.0.0:1025" {
		t.Errorf("expected listen '0.0.0.0:1025', got %q", cfg.Listen)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected log_level 'info', got %q", cfg.LogLevel)
	}

	if len(cfg.Fields) != 3 || cfg.Fields[0] != "date" || cfg.Fields[1] != "from" || cfg.Fields[2] != "subject" {
		t.Errorf("expected fields [date from subject], got %v", cfg.Fields)
	}

	if len(cfg.Domains) == 0 || cfg.Domains[0] != "localhost" {
		t.Errorf("expected domains to start with 'localhost', got %v", cfg.Domains)
	}

	if cfg.Unknown != UnknownRelay {
		t.Errorf("expected unknown policy 'relay', got %q", cfg.Unknown)
	}

	if cfg.Telegram.APIGateway != "https://api.telegram.org" {
		t.Errorf("expected api_gateway 'https://api.telegram.org', got %q", cfg.Telegram.APIGateway)
	}

	if cfg.Delivery.MaxInflight != 4 {
		t.Errorf("expected max_inflight 4, got %d", cfg.Delivery.MaxInflight)
	}

	if cfg.Delivery.MaxAttempts != 6 {
		t.Errorf("expected max_attempts 6, got %d", cfg.Delivery.MaxAttempts)
	}

	if cfg.Limits.MaxMessageSize != 26214400 {
		t.Errorf("expected max_message_size 26214400, got %d", cfg.Limits.MaxMessageSize)
	}

	if cfg.Limits.MaxRecipients != 100 {
		t.Errorf("expected max_recipients 100, got %d", cfg.Limits.MaxRecipients)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Telegram.APIKey = "123456:token"
		cfg.Recipients = map[string]int64{"root": -1}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty hostname",
			modify:  func(c *Config) { c.Hostname = "" },
			wantErr: true,
		},
		{
			name:    "empty listen address",
			modify:  func(c *Config) { c.Listen = "" },
			wantErr: true,
		},
		{
			name:    "invalid unknown policy",
			modify:  func(c *Config) { c.Unknown = "bounce" },
			wantErr: true,
		},
		{
			name:    "no domains",
			modify:  func(c *Config) { c.Domains = nil },
			wantErr: true,
		},
		{
			name:    "invalid domain",
			modify:  func(c *Config) { c.Domains = []string{"not a domain"} },
			wantErr: true,
		},
		{
			name:    "domain with leading dash",
			modify:  func(c *Config) { c.Domains = []string{"-bad.example.com"} },
			wantErr: true,
		},
		{
			name:    "missing api key",
			modify:  func(c *Config) { c.Telegram.APIKey = "" },
			wantErr: true,
		},
		{
			name:    "missing api gateway",
			modify:  func(c *Config) { c.Telegram.APIGateway = "" },
			wantErr: true,
		},
		{
			name:    "invalid telegram timeout",
			modify:  func(c *Config) { c.Telegram.Timeout = "soon" },
			wantErr: true,
		},
		{
			name:    "zero max_inflight",
			modify:  func(c *Config) { c.Delivery.MaxInflight = 0 },
			wantErr: true,
		},
		{
			name:    "zero max_attempts",
			modify:  func(c *Config) { c.Delivery.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "zero queue_depth",
			modify:  func(c *Config) { c.Delivery.QueueDepth = 0 },
			wantErr: true,
		},
		{
			name:    "invalid retry_base",
			modify:  func(c *Config) { c.Delivery.RetryBase = "fast" },
			wantErr: true,
		},
		{
			name:    "zero max_message_size",
			modify:  func(c *Config) { c.Limits.MaxMessageSize = 0 },
			wantErr: true,
		},
		{
			name:    "invalid command timeout",
			modify:  func(c *Config) { c.Timeouts.Command = "1 minute" },
			wantErr: true,
		},
		{
			name: "metrics enabled without address",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Address = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()

	if got := cfg.Telegram.APITimeout(); got != 30*time.Second {
		t.Errorf("expected api timeout 30s, got %v", got)
	}

	if got := cfg.Delivery.RetryBaseDuration(); got != time.Second {
		t.Errorf("expected retry base 1s, got %v", got)
	}

	if got := cfg.Delivery.RetryCapDuration(); got != 5*time.Minute {
		t.Errorf("expected retry cap 5m, got %v", got)
	}

	if got := cfg.Timeouts.ConnectionTimeout(); got != 5*time.Minute {
		t.Errorf("expected connection timeout 5m, got %v", got)
	}

	if got := cfg.Timeouts.CommandTimeout(); got != time.Minute {
		t.Errorf("expected command timeout 1m, got %v", got)
	}

	cfg.Delivery.RetryBase = "250ms"
	if got := cfg.Delivery.RetryBaseDuration(); got != 250*time.Millisecond {
		t.Errorf("expected retry base 250ms, got %v", got)
	}

	cfg.Delivery.RetryBase = "broken"
	if got := cfg.Delivery.RetryBaseDuration(); got != time.Second {
		t.Errorf("expected fallback retry base 1s, got %v", got)
	}
}
