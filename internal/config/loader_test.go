package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smtp2tg.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
hostname = "mail.example.com"
listen = "127.0.0.1:2525"
log_level = "debug"
fields = ["subject"]
domains = ["example.com"]
unknown = "deny"
default = -100200300

[recipients]
"somebody@example.com" = 1234567
"root" = -100200300

[telegram]
api_key = "123456:token"

[delivery]
max_attempts = 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "mail.example.com" {
		t.Errorf("expected hostname 'mail.example.com', got %q", cfg.Hostname)
	}

	if cfg.Listen != "127.0.0.1:2525" {
		t.Errorf("expected listen '127.0.0.1:2525', got %q", cfg.Listen)
	}

	if len(cfg.Fields) != 1 || cfg.Fields[0] != "subject" {
		t.Errorf("expected fields [subject], got %v", cfg.Fields)
	}

	if len(cfg.Domains) != 1 || cfg.Domains[0] != "example.com" {
		t.Errorf("expected domains [example.com], got %v", cfg.Domains)
	}

	if cfg.Unknown != UnknownDeny {
		t.Errorf("expected unknown 'deny', got %q", cfg.Unknown)
	}

	if cfg.Default != -100200300 {
		t.Errorf("expected default -100200300, got %d", cfg.Default)
	}

	if got := cfg.Recipients["somebody@example.com"]; got != 1234567 {
		t.Errorf("expected recipient somebody@example.com -> 1234567, got %d", got)
	}

	if got := cfg.Recipients["root"]; got != -100200300 {
		t.Errorf("expected recipient root -> -100200300, got %d", got)
	}

	if cfg.Telegram.APIKey != "123456:token" {
		t.Errorf("expected api_key to be set, got %q", cfg.Telegram.APIKey)
	}

	// File values merge over defaults; untouched settings keep defaults.
	if cfg.Delivery.MaxAttempts != 3 {
		t.Errorf("expected max_attempts 3, got %d", cfg.Delivery.MaxAttempts)
	}
	if cfg.Delivery.MaxInflight != 4 {
		t.Errorf("expected default max_inflight 4, got %d", cfg.Delivery.MaxInflight)
	}
	if cfg.Telegram.APIGateway != "https://api.telegram.org" {
		t.Errorf("expected default api_gateway, got %q", cfg.Telegram.APIGateway)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeConfig(t, "hostname = [broken")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()

	cfg = ApplyFlags(cfg, &Flags{
		Hostname: "flag.example.com",
		LogLevel: "debug",
		Listen:   ":2525",
		Default:  42,
		Unknown:  "deny",
	})

	if cfg.Hostname != "flag.example.com" {
		t.Errorf("expected hostname override, got %q", cfg.Hostname)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level override, got %q", cfg.LogLevel)
	}
	if cfg.Listen != ":2525" {
		t.Errorf("expected listen override, got %q", cfg.Listen)
	}
	if cfg.Default != 42 {
		t.Errorf("expected default override, got %d", cfg.Default)
	}
	if cfg.Unknown != UnknownDeny {
		t.Errorf("expected unknown override, got %q", cfg.Unknown)
	}

	// Empty flags leave the config alone.
	cfg = ApplyFlags(cfg, &Flags{})
	if cfg.Hostname != "flag.example.com" {
		t.Errorf("empty flags should not reset hostname, got %q", cfg.Hostname)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SMTP2TG_HOSTNAME", "env.example.com")
	t.Setenv("SMTP2TG_API_KEY", "env-token")
	t.Setenv("SMTP2TG_LISTEN", "")

	cfg := Default()
	cfg = ApplyEnv(cfg)

	if cfg.Hostname != "env.example.com" {
		t.Errorf("expected hostname from env, got %q", cfg.Hostname)
	}
	if cfg.Telegram.APIKey != "env-token" {
		t.Errorf("expected api_key from env, got %q", cfg.Telegram.APIKey)
	}
	if cfg.Listen != "0.0.0.0:1025" {
		t.Errorf("empty env var should not reset listen, got %q", cfg.Listen)
	}
}
