package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/tsbernar/proxy-auth/config"
	_ "modernc.org/sqlite"
)

const (
	postgresDriver      = "postgres"
	sqliteDriver        = "sqlite"
	defaultPingTimeout  = 5 * time.Second
	defaultConnMaxIdle  = 2 * time.Minute
	defaultConnMaxLife  = 30 * time.Minute
	defaultMaxIdleConns = 5
	defaultMaxOpenConns = 25
	sqlitePragmas       = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
)

// Open connects to the configured user database. A database_url selects
// Postgres; otherwise database_file is opened as SQLite.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	driver, dsn := dataSource(cfg)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == sqliteDriver {
		// A single connection serializes writers on the database file.
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(defaultConnMaxIdle)
		db.SetConnMaxLifetime(defaultConnMaxLife)
		db.SetMaxIdleConns(defaultMaxIdleConns)
		db.SetMaxOpenConns(defaultMaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}

func dataSource(cfg config.Config) (driver, dsn string) {
	if cfg.UsesPostgres() {
		return postgresDriver, strings.TrimSpace(cfg.DatabaseURL)
	}
	path := strings.TrimSpace(cfg.DatabaseFile)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return sqliteDriver, path + sep + sqlitePragmas
}
