package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "FUELGRID_CONFIG"

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fuelgrid/config.yaml",
}

// Config is the full service configuration. Precedence: environment
// variables over config file over built-in defaults.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
}

type ServerConfig struct {
	Addr          string        `koanf:"addr"`
	GRPCAddr      string        `koanf:"grpc_addr"`
	ReadTimeout   time.Duration `koanf:"read_timeout"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
	IdleTimeout   time.Duration `koanf:"idle_timeout"`
	MaxBodyBytes  int64         `koanf:"max_body_bytes"`
	RateBurst     int           `koanf:"rate_burst"`
	RatePerSecond int           `koanf:"rate_per_second"`
}

type DatabaseConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type AuthConfig struct {
	TokenSecret string        `koanf:"token_secret"`
	AccessTTL   time.Duration `koanf:"access_ttl"`
	RefreshTTL  time.Duration `koanf:"refresh_ttl"`
	Tenant      string        `koanf:"tenant"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			GRPCAddr:      ":9090",
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  15 * time.Second,
			IdleTimeout:   60 * time.Second,
			MaxBodyBytes:  1 << 20,
			RateBurst:     40,
			RatePerSecond: 20,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 14 * 24 * time.Hour,
		},
	}
}

// Load assembles the configuration from defaults, an optional YAML file and
// FUELGRID_* environment variables (FUELGRID_SERVER_ADDR -> server.addr).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("FUELGRID_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "FUELGRID_")
		return strings.Replace(strings.ToLower(s), "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("config: auth TTLs must be positive")
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return errors.New("config: access_ttl must be shorter than refresh_ttl")
	}
	if c.Server.Addr == "" {
		return errors.New("config: server addr is required")
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
