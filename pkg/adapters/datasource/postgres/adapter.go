//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
)

// TypeName is the adapter type registered for PostgreSQL.
const TypeName = "postgres"

// Connect opens one physical PostgreSQL connection for a session.
// Statements are sent with the simple protocol, so a query string may hold
// several statements the way the MySQL adapter allows.
func Connect(ctx context.Context, creds datasource.Credentials) (datasource.Conn, error) {
	cfg := FromCredentials(creds)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	connCfg, err := pgx.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection config: %w", err)
	}
	connCfg.ConnectTimeout = cfg.ConnectTimeout
	connCfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pgConn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	conn, err := newConn(ctx, pgConn, cfg.Autocommit)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
