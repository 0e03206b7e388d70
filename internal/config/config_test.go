package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected default addr: %s", cfg.Server.Addr)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute || cfg.Auth.RefreshTTL != 14*24*time.Hour {
		t.Fatalf("unexpected default TTLs: %v / %v", cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Fatalf("unexpected default max open conns: %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("server:\n  addr: \":9000\"\nauth:\n  tenant: file-tenant\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("FUELGRID_AUTH_TENANT", "env-tenant")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("file value not applied: %s", cfg.Server.Addr)
	}
	if cfg.Auth.Tenant != "env-tenant" {
		t.Fatalf("env must win over file, got %s", cfg.Auth.Tenant)
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.AccessTTL = time.Hour
	cfg.Auth.RefreshTTL = time.Minute
	if err := cfg.Validate(); err == nil {
		t.Fatal("access TTL longer than refresh TTL must be rejected")
	}

	cfg = defaultConfig()
	cfg.Server.Addr = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty addr must be rejected")
	}
}
