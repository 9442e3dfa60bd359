package datasource

import (
	"context"
	"time"
)

const (
	// DefaultType is the driver adapter used when Credentials.Type is empty.
	DefaultType = "mysql"
	// DefaultConnectTimeout bounds a physical connect attempt.
	DefaultConnectTimeout = 30 * time.Second
)

// Credentials identify the database a Session connects to.
type Credentials struct {
	Type       string // registered adapter type: "mysql", "postgres", "mssql"
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	Autocommit bool

	// ConnectTimeout bounds each connect attempt. Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration
}

func (c Credentials) withDefaults() Credentials {
	if c.Type == "" {
		c.Type = DefaultType
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// Conn is one physical database connection owned by a Session.
// Implementations are not required to be safe for concurrent use; the owning
// Session serializes every call.
type Conn interface {
	// Query runs a statement and returns all of its rows.
	Query(ctx context.Context, sql string) (*QueryResult, error)

	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, sql string) (int64, error)

	// Commit commits the current transaction.
	Commit(ctx context.Context) error

	// Rollback rolls back the current transaction.
	Rollback(ctx context.Context) error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error

	// GetType returns the database type for logging/stats.
	GetType() string
}

// Connector opens a Conn for the given credentials. The context carries the
// connect deadline.
type Connector func(ctx context.Context, creds Credentials) (Conn, error)

// QueryResult contains the rows returned by a query. Rows are keyed by column name.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// First returns the first row, or nil when the result is empty.
func (r *QueryResult) First() map[string]any {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Len returns the number of rows.
func (r *QueryResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// firstOnly returns a copy holding at most the first row.
func (r *QueryResult) firstOnly() *QueryResult {
	if r == nil {
		return nil
	}
	out := &QueryResult{Columns: r.Columns, Rows: make([]map[string]any, 0, 1)}
	if len(r.Rows) > 0 {
		out.Rows = append(out.Rows, r.Rows[0])
	}
	return out
}
