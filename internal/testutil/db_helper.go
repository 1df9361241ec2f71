package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/config"
	"github.com/parsascontentcorner/linkgate/internal/database"
)

// SetupTestDB creates a PostgreSQL TestContainer, runs migrations, and returns a database connection.
// Returns the DB connection, a cleanup function, and any error encountered.
//
// Usage:
//
//	db, cleanup, err := testutil.SetupTestDB(ctx)
//	require.NoError(t, err)
//	defer cleanup()
func SetupTestDB(ctx context.Context) (*database.DB, func(), error) {
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
		return nil, nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mappedPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get mapped port: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
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
		ConnectRetries: 5,
	}

	db, err := openAndMigrate(ctx, cfg, logger)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close db", zap.Error(err))
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			logger.Error("failed to terminate container", zap.Error(err))
		}
	}

	return db, cleanup, nil
}

// SetupSQLiteDB opens a migrated in-memory SQLite database.
func SetupSQLiteDB(ctx context.Context) (*database.DB, func(), error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg := &config.DatabaseConfig{
		Driver:         "sqlite",
		Path:           ":memory:",
		ConnectRetries: 1,
	}

	db, err := openAndMigrate(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close db", zap.Error(err))
		}
	}

	return db, cleanup, nil
}

func openAndMigrate(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	db, err := database.NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// TruncateDocuments removes all documents, keeping the schema.
func TruncateDocuments(ctx context.Context, db *database.DB) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("failed to truncate documents: %w", err)
	}
	return nil
}
