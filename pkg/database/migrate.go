package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/transfer_engine/migrations"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// MigratePostgres applies the embedded postgres migrations to databaseURL.
func MigratePostgres(databaseURL string, logger *slog.Logger) error {
	// A temporary database/sql handle through the pgx stdlib driver, compatible with the main pool.
	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection for migrations: %w", err)
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create postgres driver instance for migrations: %w", err)
	}
	return runMigrations(driver, "postgres", migrations.PostgresDir, logger)
}

// MigrateSQLite applies the embedded sqlite migrations to db.
func MigrateSQLite(db *sql.DB, logger *slog.Logger) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to set up migrate driver: %w", err)
	}
	return runMigrations(driver, "sqlite3", migrations.SQLiteDir, logger)
}

func runMigrations(driver migratedb.Driver, databaseName, dir string, logger *slog.Logger) error {
	sourceDriver, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.", slog.String("database", databaseName))
	} else {
		logger.Info("Database migrations applied successfully.", slog.String("database", databaseName))
	}
	return nil
}
