package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
)

// TypeName is the adapter type registered for MySQL and MariaDB.
const TypeName = "mysql"

// Dialect describes MySQL transaction handling. The autocommit mode is set on
// the connection itself, so plain COMMIT/ROLLBACK work in both modes.
var Dialect = datasource.SQLDialect{Type: TypeName}

// Connect opens one physical MySQL connection for a session.
func Connect(ctx context.Context, creds datasource.Credentials) (datasource.Conn, error) {
	cfg := FromCredentials(creds)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	connector, err := mysql.NewConnector(cfg.driverConfig())
	if err != nil {
		return nil, fmt.Errorf("create mysql connector: %w", err)
	}

	conn, err := datasource.NewSQLConn(ctx, sql.OpenDB(connector), Dialect)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
