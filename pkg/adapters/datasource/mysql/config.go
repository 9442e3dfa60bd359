package mysql

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pool/pkg/config"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	Autocommit     bool
	ConnectTimeout time.Duration
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
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
	return nil
}

// driverConfig builds the go-sql-driver configuration. Unknown Params are sent
// by the driver as SET statements on every new connection, which is how the
// autocommit mode is applied.
func (c *Config) driverConfig() *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(config.ResolveHostForDocker(c.Host), strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.Timeout = c.ConnectTimeout
	mc.ParseTime = true
	mc.Params = map[string]string{"autocommit": autocommitValue(c.Autocommit)}
	return mc
}

// DSN returns the driver DSN, including the password.
func (c *Config) DSN() string {
	return c.driverConfig().FormatDSN()
}

func autocommitValue(on bool) string {
	if on {
		return "1"
	}
	return "0"
}
