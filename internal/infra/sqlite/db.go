// Package sqlite provides SQL persistence for fitquest gamification state.
// SQLite (pure Go, WAL mode) is the default; the same schema runs on
// Postgres through the pgx driver.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver, registered as "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DB wraps a connection pool with applied migrations.
type DB struct {
	db     *sqlx.DB
	driver string
	log    *slog.Logger
}

// DefaultDSN returns the SQLite DSN for dir/fitquest.db with WAL, foreign
// keys and a 5-second busy timeout.
func DefaultDSN(dir string) string {
	return filepath.Join(dir, "fitquest.db") +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Open connects to the database and runs pending schema migrations.
func Open(driver, dsn string, log *slog.Logger) (*DB, error) {
	if log == nil {
		log = slog.Default()
	}
	switch driver {
	case DriverSQLite:
		path := strings.TrimPrefix(dsn, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path != "" && path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite is single-writer
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	d := &DB{db: db, driver: driver, log: log.With("component", "store", "driver", driver)}
	if err := runMigrations(db.DB, driver, d.log); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	d.log.Info("database connected")
	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Driver returns the driver name the database was opened with.
func (d *DB) Driver() string {
	return d.driver
}
