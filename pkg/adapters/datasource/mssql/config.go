package mssql

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pool/pkg/config"
)

// Config contains SQL Server connection options. Only SQL authentication is supported.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Database       string
	Autocommit     bool
	ConnectTimeout time.Duration
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// FromCredentials creates a Config from session credentials.
func FromCredentials(creds datasource.Credentials) *Config {
	cfg := &Config{
		Host:           creds.Host,
		Port:           creds.Port,
		Username:       creds.User,
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

// Validate checks if the config has all required fields for SQL authentication.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Username == "" {
		return fmt.Errorf("username is required for SQL authentication")
	}
	return nil
}

// ConnectionString builds a sqlserver:// URL for SQL authentication.
func (c *Config) ConnectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)
	if secs := int(c.ConnectTimeout.Seconds()); secs > 0 {
		query.Add("connection timeout", strconv.Itoa(secs))
	}

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port)),
		RawQuery: query.Encode(),
	}
	return u.String()
}
