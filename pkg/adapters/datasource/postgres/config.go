package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pool/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	Autocommit     bool
	ConnectTimeout time.Duration
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// FromCredentials creates a Config from session credentials.
func FromCredentials(creds datasource.Credentials) *Config {
	cfg := &Config{
		Host:           creds.Host,
		Port:           creds.Port,
		User:           creds.User,
		Password:       creds.Password,
		Database:       creds.Database,
		Autocommit:     creds.Autocommit,
		ConnectTimeout: creds.ConnectTimeout,
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = datasource.DefaultConnectTimeout
	}
	return cfg
}

// Validate checks if the config can be used to connect.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	return nil
}

// ConnectionString builds a PostgreSQL URL. User, password and database are
// escaped by net/url so that characters like @, / and # survive parsing.
// When running in Docker, localhost is resolved to host.docker.internal.
func (c *Config) ConnectionString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}
