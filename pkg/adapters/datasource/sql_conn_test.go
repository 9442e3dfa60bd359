package datasource

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	return db, mock
}

func TestNewSQLConn_RunsInitStatements(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("SET IMPLICIT_TRANSACTIONS ON").WillReturnResult(sqlmock.NewResult(0, 0))

	conn, err := NewSQLConn(context.Background(), db, SQLDialect{Type: "mssql", Init: []string{"SET IMPLICIT_TRANSACTIONS ON"}})
	require.NoError(t, err)
	assert.Equal(t, "mssql", conn.GetType())
	assert.Same(t, db, conn.DB())

	mock.ExpectClose()
	require.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLConn_InitFailureClosesDB(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("SET search_path TO app").WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()

	conn, err := NewSQLConn(context.Background(), db, SQLDialect{Type: "test", Init: []string{"SET search_path TO app"}})
	assert.Nil(t, conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize test session")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConn_Query(t *testing.T) {
	db, mock := setupMockDB(t)
	conn, err := NewSQLConn(context.Background(), db, SQLDialect{Type: "mysql"})
	require.NoError(t, err)
	defer conn.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "deleted_at"}).
		AddRow(int64(1), []byte("alice"), nil).
		AddRow(int64(2), []byte("bob"), nil)
	mock.ExpectQuery("SELECT id, name, deleted_at FROM users").WillReturnRows(rows)

	result, err := conn.Query(context.Background(), "SELECT id, name, deleted_at FROM users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "deleted_at"}, result.Columns)
	require.Equal(t, 2, result.Len())
	assert.Equal(t, int64(1), result.Rows[0]["id"])
	assert.Equal(t, "alice", result.Rows[0]["name"], "text columns are returned as strings")
	assert.Nil(t, result.Rows[0]["deleted_at"])
	assert.Equal(t, "bob", result.Rows[1]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConn_QueryNoRows(t *testing.T) {
	db, mock := setupMockDB(t)
	conn, err := NewSQLConn(context.Background(), db, SQLDialect{Type: "mysql"})
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("SELECT id FROM users WHERE 1 = 0").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := conn.Query(context.Background(), "SELECT id FROM users WHERE 1 = 0")
	require.NoError(t, err)
	assert.NotNil(t, result.Rows)
	assert.Equal(t, 0, result.Len())
}

func TestSQLConn_ExecAndTransactions(t *testing.T) {
	db, mock := setupMockDB(t)
	conn, err := NewSQLConn(context.Background(), db, SQLDialect{
		Type:        "mssql",
		CommitSQL:   "IF @@TRANCOUNT > 0 COMMIT TRANSACTION",
		RollbackSQL: "IF @@TRANCOUNT > 0 ROLLBACK TRANSACTION",
	})
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	mock.ExpectExec("UPDATE users SET active = 1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("IF @@TRANCOUNT > 0 COMMIT TRANSACTION").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("IF @@TRANCOUNT > 0 ROLLBACK TRANSACTION").WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := conn.Exec(ctx, "UPDATE users SET active = 1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, conn.Commit(ctx))
	require.NoError(t, conn.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConn_DefaultTransactionStatements(t *testing.T) {
	db, mock := setupMockDB(t)
	conn, err := NewSQLConn(context.Background(), db, SQLDialect{Type: "mysql"})
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, conn.Commit(context.Background()))
	require.NoError(t, conn.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A session over a real database/sql connection: the driver error drops the
// session, and a sweep-style reconnect brings it back on a fresh connection.
func TestSession_WithSQLConn(t *testing.T) {
	var mocks []sqlmock.Sqlmock
	connect := func(ctx context.Context, _ Credentials) (Conn, error) {
		db, mock := setupMockDB(t)
		mocks = append(mocks, mock)
		if len(mocks) == 1 {
			mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("invalid connection"))
		} else {
			mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
		}
		mock.ExpectClose()
		return NewSQLConn(ctx, db, SQLDialect{Type: "mysql"})
	}

	s := NewSession(context.Background(), "default", hostCreds("db"), connect, zaptest.NewLogger(t), nil)
	require.True(t, s.Connected())

	_, err := s.Query(context.Background(), "SELECT 1", true)
	require.Error(t, err)
	assert.False(t, s.Connected())

	require.NoError(t, s.Reconnect(context.Background()))
	result, err := s.Query(context.Background(), "SELECT 1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.First()["1"])

	require.NoError(t, s.Close())
	for _, mock := range mocks {
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}
