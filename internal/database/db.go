// Package database provides the document store used for link state, backed by
// PostgreSQL or SQLite, plus an in-memory implementation.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/parsascontentcorner/linkgate/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// DB wraps the database connection
type DB struct {
	*sql.DB
	driver string
	logger *zap.Logger
}

// NewDB creates a new database connection with connection pooling
func NewDB(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	var sqlDB *sql.DB
	var err error

	switch cfg.Driver {
	case "postgres":
		sqlDB, err = sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	case "sqlite":
		sqlDB, err = sql.Open("sqlite", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		// A single connection keeps in-memory databases shared and avoids writer contention.
		sqlDB.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	// Verify connection, retrying while the database comes up
	backoff := retry.WithMaxRetries(cfg.ConnectRetries, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := sqlDB.PingContext(pingCtx); err != nil {
			logger.Warn("database ping failed, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("driver", cfg.Driver),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
	)

	return &DB{
		DB:     sqlDB,
		driver: cfg.Driver,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// Health checks the database health
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// RunMigrations applies the embedded migrations for the active driver
func (db *DB) RunMigrations() error {
	db.logger.Info("running database migrations with golang-migrate", zap.String("driver", db.driver))

	source, err := iofs.New(migrationsFS, "migrations/"+db.driver)
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	var driver database.Driver
	switch db.driver {
	case "postgres":
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{
			MigrationsTable: "schema_migrations",
		})
	case "sqlite":
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{
			MigrationsTable: "schema_migrations",
		})
	default:
		err = fmt.Errorf("unsupported database driver %q", db.driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s driver instance: %w", db.driver, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, db.driver, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run all pending migrations
	if err := m.Up(); err != nil {
		// ErrNoChange is not an error - it means we're already up to date
		if errors.Is(err, migrate.ErrNoChange) {
			db.logger.Info("database schema is already up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		db.logger.Warn("failed to get migration version", zap.Error(err))
	} else if err == nil {
		db.logger.Info("database migrations completed successfully",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
	}

	return nil
}
