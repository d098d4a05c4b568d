package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenNoFileOrEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load(&CLIFlags{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8443" {
		t.Fatalf("expected default port 8443, got %s", cfg.Server.Port)
	}
	if cfg.Session.TTLMinutes != 60 {
		t.Fatalf("expected default session ttl 60, got %d", cfg.Session.TTLMinutes)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zkauth.yaml")
	yamlBody := "server:\n  port: \"9000\"\n  env: production\nsession:\n  ttl_minutes: 30\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(&CLIFlags{ConfigPath: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("expected port from file, got %s", cfg.Server.Port)
	}
	if cfg.Server.Env != "production" {
		t.Fatalf("expected env from file, got %s", cfg.Server.Env)
	}
	if cfg.Session.TTLMinutes != 30 {
		t.Fatalf("expected ttl from file, got %d", cfg.Session.TTLMinutes)
	}
}

func TestCLIFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zkauth.yaml")
	yamlBody := "server:\n  port: \"9000\"\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(&CLIFlags{ConfigPath: path, Port: "9999"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Fatalf("expected CLI flag to win, got %s", cfg.Server.Port)
	}
}

func TestEnvOverridesFileButNotCLIFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zkauth.yaml")
	yamlBody := "server:\n  port: \"9000\"\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ZKAUTH_PORT", "7000")

	cfg, err := Load(&CLIFlags{ConfigPath: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Fatalf("expected env var to override file, got %s", cfg.Server.Port)
	}

	cfg, err = Load(&CLIFlags{ConfigPath: path, Port: "9999"})
	if err != nil {
		t.Fatalf("load with flag: %v", err)
	}
	if cfg.Server.Port != "9999" {
		t.Fatalf("expected CLI flag to override env var, got %s", cfg.Server.Port)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = "not-a-port"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-numeric port")
	}
}

func TestValidateRejectsMissingHTTPSEmail(t *testing.T) {
	cfg := Default()
	cfg.HTTPS.Enabled = true
	cfg.HTTPS.Email = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing https email")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}
	got := ExpandPath("~/zkauth/data.db")
	want := filepath.Join(home, "zkauth/data.db")
	if got != want {
		t.Fatalf("ExpandPath: got %q, want %q", got, want)
	}
}
