package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-pool.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Pool holds the connection settings for the default pool.
	Pool PoolConfig `yaml:"pool"`

	// Pools lists additional named pools registered at startup.
	Pools []NamedPoolConfig `yaml:"pools"`
}

// PoolConfig holds the settings used to build the default pool.
type PoolConfig struct {
	Type        string `yaml:"type" env:"DB_TYPE" env-default:"mysql"`
	Host        string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port        int    `yaml:"port" env:"DB_PORT" env-default:"3306"`
	User        string `yaml:"user" env:"DB_USER" env-default:"root"`
	Password    string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database    string `yaml:"database" env:"DB_NAME" env-default:""`
	DefaultPool string `yaml:"default_pool" env:"DB_DEFAULT_POOL" env-default:"default"`
	Connections int    `yaml:"connections" env:"DB_CONNECTIONS" env-default:"1"`

	// Defaulted to true by newConfig.
	Autocommit bool `yaml:"autocommit" env:"DB_AUTOCOMMIT"`

	// StartSweeper controls whether the background reconnect sweep runs.
	StartSweeper bool `yaml:"start_sweeper" env:"DB_START_SWEEPER"`
	// SweepInterval is the delay between the end of one sweep and the start of the next.
	SweepInterval time.Duration `yaml:"sweep_interval" env:"DB_SWEEP_INTERVAL" env-default:"60s"`
	// ConnectTimeout bounds every physical connect attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"DB_CONNECT_TIMEOUT" env-default:"30s"`
}

// NamedPoolConfig describes an additional pool. Host, port, user and type
// fall back to the default pool's values when empty.
type NamedPoolConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Database    string `yaml:"database"`
	Connections int    `yaml:"connections"`
	Autocommit  *bool  `yaml:"autocommit"`

	// PasswordEnv names the environment variable holding this pool's password.
	PasswordEnv string `yaml:"password_env"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile reads configuration from the given YAML file with environment variable overrides.
func LoadFile(path, version string) (*Config, error) {
	cfg := newConfig(version)

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEnv reads configuration from environment variables only.
func LoadEnv(version string) (*Config, error) {
	cfg := newConfig(version)

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func newConfig(version string) *Config {
	return &Config{
		Version: version,
		Pool: PoolConfig{
			Autocommit:   true,
			StartSweeper: true,
		},
	}
}

// Validate checks pool settings. Named pools without a connection count get one.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pool.DefaultPool) == "" {
		return fmt.Errorf("pool.default_pool must not be empty")
	}
	if c.Pool.Connections < 0 {
		return fmt.Errorf("pool.connections must be >= 0, got %d", c.Pool.Connections)
	}
	if c.Pool.Port <= 0 || c.Pool.Port > 65535 {
		return fmt.Errorf("invalid pool.port: %d", c.Pool.Port)
	}
	if c.Pool.StartSweeper && c.Pool.SweepInterval <= 0 {
		return fmt.Errorf("pool.sweep_interval must be positive when the sweeper is enabled")
	}

	seen := map[string]bool{c.Pool.DefaultPool: true}
	for i := range c.Pools {
		p := &c.Pools[i]
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("pools[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("pools[%d]: duplicate pool name %q", i, p.Name)
		}
		seen[p.Name] = true
		if p.Connections <= 0 {
			p.Connections = 1
		}
	}

	return nil
}

// Password returns the password for a named pool, read from its PasswordEnv.
// Pools without PasswordEnv share the default pool's password.
func (p NamedPoolConfig) Password(defaultPassword string) string {
	if p.PasswordEnv == "" {
		return defaultPassword
	}
	return os.Getenv(p.PasswordEnv)
}

// Resolve returns a copy of the named pool with empty fields filled from the default pool.
func (p NamedPoolConfig) Resolve(def PoolConfig) NamedPoolConfig {
	if p.Type == "" {
		p.Type = def.Type
	}
	if p.Host == "" {
		p.Host = def.Host
	}
	if p.Port == 0 {
		p.Port = def.Port
	}
	if p.User == "" {
		p.User = def.User
	}
	if p.Database == "" {
		p.Database = def.Database
	}
	if p.Autocommit == nil {
		autocommit := def.Autocommit
		p.Autocommit = &autocommit
	}
	return p
}
