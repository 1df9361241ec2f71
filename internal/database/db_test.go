package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/config"
)

// setupPostgresContainer starts a PostgreSQL container for testing
func setupPostgresContainer(ctx context.Context) (testcontainers.Container, *config.DatabaseConfig, error) {
	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		return nil, nil, err
	}

	mappedPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		return nil, nil, err
	}

	cfg := &config.DatabaseConfig{
		Driver:         "postgres",
		Host:           host,
		Port:           mappedPort.Port(),
		User:           "testuser",
		Password:       "testpass",
		Name:           "testdb",
		SSLMode:        "disable",
		MaxOpenConns:   5,
		MaxIdleConns:   2,
		ConnectRetries: 3,
	}

	return pgContainer, cfg, nil
}

func sqliteConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:         "sqlite",
		Path:           ":memory:",
		ConnectRetries: 1,
	}
}

func skipWithoutDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}
}

func TestNewDB_Postgres(t *testing.T) {
	skipWithoutDocker(t)
	ctx := context.Background()

	pgContainer, cfg, err := setupPostgresContainer(ctx)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	db, err := NewDB(ctx, cfg, logger)

	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	assert.NoError(t, db.PingContext(ctx))
	assert.Equal(t, 5, db.Stats().MaxOpenConnections)
	assert.NoError(t, db.RunMigrations())
	assert.NoError(t, db.RunMigrations(), "re-running migrations must be a no-op")
}

func TestNewDB_InvalidCredentials(t *testing.T) {
	skipWithoutDocker(t)
	ctx := context.Background()

	pgContainer, cfg, err := setupPostgresContainer(ctx)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	cfg.Password = "wrong_password"
	cfg.ConnectRetries = 0

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	db, err := NewDB(ctx, cfg, logger)

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestNewDB_InvalidHost(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:         "postgres",
		Host:           "nonexistent-host-12345",
		Port:           "5432",
		User:           "testuser",
		Password:       "testpass",
		Name:           "testdb",
		SSLMode:        "disable",
		MaxOpenConns:   5,
		MaxIdleConns:   2,
		ConnectRetries: 0,
	}

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	db, err := NewDB(context.Background(), cfg, logger)

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	db, err := NewDB(context.Background(), &config.DatabaseConfig{Driver: "mysql"}, logger)

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNewDB_SQLite(t *testing.T) {
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	db, err := NewDB(ctx, sqliteConfig(), logger)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
	require.NoError(t, db.RunMigrations())
	assert.NoError(t, db.RunMigrations())

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestDBHealth(t *testing.T) {
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	db, err := NewDB(ctx, sqliteConfig(), logger)
	require.NoError(t, err)

	assert.NoError(t, db.Health(ctx))

	require.NoError(t, db.Close())

	err = db.Health(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database health check failed")
}
