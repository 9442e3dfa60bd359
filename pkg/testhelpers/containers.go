package testhelpers

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver for database/sql (migrations)
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pool/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pool/pkg/database"
	"github.com/ekaya-inc/ekaya-pool/pkg/retry"
)

// MySQLTestImage is the MySQL image used for integration tests.
const MySQLTestImage = "mysql:8.0"

const (
	testDatabase = "pool_test"
	testUser     = "ekaya"
	testPassword = "test_password"
)

//go:embed testdata/migrations/*.sql
var seedMigrations embed.FS

// TestDB holds a shared MySQL test container seeded with the accounts table.
type TestDB struct {
	Container testcontainers.Container
	Host      string
	Port      int
	DSN       string
}

// Credentials returns session credentials for the test database.
func (db *TestDB) Credentials(autocommit bool) datasource.Credentials {
	return datasource.Credentials{
		Type:           "mysql",
		Host:           db.Host,
		Port:           db.Port,
		User:           testUser,
		Password:       testPassword,
		Database:       testDatabase,
		Autocommit:     autocommit,
		ConnectTimeout: 10 * time.Second,
	}
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestMySQL returns a shared MySQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestMySQL(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MySQLTestImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": testPassword,
			"MYSQL_DATABASE":      testDatabase,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mapped, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return nil, fmt.Errorf("invalid container port %q: %w", mapped.Port(), err)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", testUser, testPassword, host, port, testDatabase)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// The entrypoint restarts mysqld after initialization, so the port can be
	// open before the server accepts logins.
	readiness := &retry.Config{
		MaxRetries:   30,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   1.5,
	}
	if err := retry.Do(ctx, readiness, func() error { return db.PingContext(ctx) }); err != nil {
		return nil, fmt.Errorf("database never became ready: %w", err)
	}

	if err := database.RunMigrations(db, seedMigrations, "testdata/migrations", zap.NewNop()); err != nil {
		return nil, err
	}

	return &TestDB{
		Container: container,
		Host:      host,
		Port:      port,
		DSN:       dsn,
	}, nil
}
