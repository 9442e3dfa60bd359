//go:build mssql || all_adapters

package mssql

import (
	"context"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
)

// TypeName is the adapter type registered for SQL Server.
const TypeName = "mssql"

// Dialect returns the transaction handling for the given autocommit mode.
// SQL Server autocommits by default; with autocommit off the session runs in
// implicit transaction mode so every statement opens a transaction that lasts
// until COMMIT or ROLLBACK. The @@TRANCOUNT guard makes both safe to call when
// no transaction is open.
func Dialect(autocommit bool) datasource.SQLDialect {
	d := datasource.SQLDialect{
		Type:        TypeName,
		CommitSQL:   "IF @@TRANCOUNT > 0 COMMIT TRANSACTION",
		RollbackSQL: "IF @@TRANCOUNT > 0 ROLLBACK TRANSACTION",
	}
	if !autocommit {
		d.Init = []string{"SET IMPLICIT_TRANSACTIONS ON"}
	}
	return d
}

// Connect opens one physical SQL Server connection for a session.
func Connect(ctx context.Context, creds datasource.Credentials) (datasource.Conn, error) {
	cfg := FromCredentials(creds)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	conn, err := datasource.OpenSQLConn(ctx, "sqlserver", cfg.ConnectionString(), Dialect(cfg.Autocommit))
	if err != nil {
		return nil, err
	}
	return conn, nil
}
