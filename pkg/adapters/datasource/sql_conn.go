package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLDialect describes how a database/sql backed Conn handles transactions.
type SQLDialect struct {
	Type        string
	Init        []string // run once, in order, right after connecting
	CommitSQL   string
	RollbackSQL string
}

// SQLConn wraps a single *sql.Conn taken from a *sql.DB that is capped at one
// open connection, so that the Conn is one physical connection.
type SQLConn struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect SQLDialect
}

// OpenSQLConn opens a database/sql driver and pins one physical connection.
func OpenSQLConn(ctx context.Context, driverName, dsn string, dialect SQLDialect) (*SQLConn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Type, err)
	}
	return NewSQLConn(ctx, db, dialect)
}

// NewSQLConn pins one connection of db and runs the dialect's init statements.
// On error db is closed.
func NewSQLConn(ctx context.Context, db *sql.DB, dialect SQLDialect) (*SQLConn, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", dialect.Type, err)
	}

	for _, stmt := range dialect.Init {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			_ = conn.Close()
			_ = db.Close()
			return nil, fmt.Errorf("initialize %s session: %w", dialect.Type, err)
		}
	}

	return &SQLConn{db: db, conn: conn, dialect: dialect}, nil
}

// Query runs a statement and collects every row into a column-keyed map.
func (c *SQLConn) Query(ctx context.Context, query string) (*QueryResult, error) {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			// Text columns arrive as []byte from most database/sql drivers
			if b, ok := values[i].([]byte); ok {
				rowMap[col] = string(b)
			} else {
				rowMap[col] = values[i]
			}
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryResult{Columns: columns, Rows: resultRows}, nil
}

// Exec runs a statement and returns the rows it affected.
func (c *SQLConn) Exec(ctx context.Context, query string) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// Commit runs the dialect's commit statement.
func (c *SQLConn) Commit(ctx context.Context) error {
	_, err := c.conn.ExecContext(ctx, c.commitSQL())
	return err
}

// Rollback runs the dialect's rollback statement.
func (c *SQLConn) Rollback(ctx context.Context) error {
	_, err := c.conn.ExecContext(ctx, c.rollbackSQL())
	return err
}

func (c *SQLConn) commitSQL() string {
	if c.dialect.CommitSQL != "" {
		return c.dialect.CommitSQL
	}
	return "COMMIT"
}

func (c *SQLConn) rollbackSQL() string {
	if c.dialect.RollbackSQL != "" {
		return c.dialect.RollbackSQL
	}
	return "ROLLBACK"
}

// Ping verifies the connection is alive.
func (c *SQLConn) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

// Close returns the pinned connection and closes the underlying *sql.DB.
func (c *SQLConn) Close() error {
	return errors.Join(c.conn.Close(), c.db.Close())
}

// GetType returns the database type.
func (c *SQLConn) GetType() string {
	return c.dialect.Type
}

// DB returns the underlying *sql.DB.
func (c *SQLConn) DB() *sql.DB {
	return c.db
}

var _ Conn = (*SQLConn)(nil)
