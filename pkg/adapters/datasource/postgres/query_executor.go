//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
)

const closeTimeout = 5 * time.Second

// Conn is a single pgx connection used as a session handle.
//
// PostgreSQL has no session-level autocommit switch, so with autocommit off an
// explicit transaction is opened on connect and again after every commit or
// rollback.
type Conn struct {
	conn       *pgx.Conn
	autocommit bool
}

func newConn(ctx context.Context, conn *pgx.Conn, autocommit bool) (*Conn, error) {
	c := &Conn{conn: conn, autocommit: autocommit}
	if err := c.begin(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) begin(ctx context.Context) error {
	if c.autocommit {
		return nil
	}
	if _, err := c.conn.Exec(ctx, "BEGIN"); err != nil {
		return fmt.Errorf("failed to open transaction: %w", err)
	}
	return nil
}

// Query runs a SQL statement and returns every row keyed by column name.
func (c *Conn) Query(ctx context.Context, sqlQuery string) (*datasource.QueryResult, error) {
	rows, err := c.conn.Query(ctx, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		resultRows = append(resultRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &datasource.QueryResult{Columns: columns, Rows: resultRows}, nil
}

// Exec runs a statement and returns the rows it affected.
func (c *Conn) Exec(ctx context.Context, stmt string) (int64, error) {
	tag, err := c.conn.Exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Commit commits the open transaction.
func (c *Conn) Commit(ctx context.Context) error {
	if _, err := c.conn.Exec(ctx, "COMMIT"); err != nil {
		return err
	}
	return c.begin(ctx)
}

// Rollback rolls back the open transaction.
func (c *Conn) Rollback(ctx context.Context) error {
	if _, err := c.conn.Exec(ctx, "ROLLBACK"); err != nil {
		return err
	}
	return c.begin(ctx)
}

// Ping verifies the connection is alive.
func (c *Conn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the connection.
func (c *Conn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return c.conn.Close(ctx)
}

// GetType returns the database type.
func (c *Conn) GetType() string {
	return TypeName
}

var _ datasource.Conn = (*Conn)(nil)
