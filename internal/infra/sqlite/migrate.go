package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// dialectMap maps database drivers to goose dialect names.
var dialectMap = map[string]string{
	DriverSQLite:   "sqlite3",
	DriverPostgres: "postgres",
}

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

func setupGoose(driver string) error {
	dialect, ok := dialectMap[driver]
	if !ok {
		dialect = driver
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	migrationsDir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations dir: %w", err)
	}
	goose.SetBaseFS(migrationsDir)
	goose.SetLogger(goose.NopLogger())
	return nil
}

func runMigrations(db *sql.DB, driver string, log *slog.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(driver); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Debug("migrations applied", "version", version)
	return nil
}

// SchemaVersion returns the applied goose migration version.
func (d *DB) SchemaVersion() (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := setupGoose(d.driver); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(d.db.DB)
}

// MigrateDown rolls back the most recent schema migration.
func (d *DB) MigrateDown() error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := setupGoose(d.driver); err != nil {
		return err
	}
	if err := goose.Down(d.db.DB, "."); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	d.log.Info("rolled back one migration")
	return nil
}
