// Package db stores run history and resulting fact snapshots.
//
// SQLite serves single-node deployments and tests, PostgreSQL shared ones.
// Both go through sqlx; the schema is embedded and versioned by MigrateUp.
package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
)

// Pool limits per driver. SQLite allows one writer at a time, so a single
// connection turns lock contention into queueing.
var poolLimits = map[string]struct {
	open, idle int
}{
	driverSQLite:   {open: 1, idle: 1},
	driverPostgres: {open: 16, idle: 4},
}

const (
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 10 * time.Second
)

// target is a parsed database URL.
type target struct {
	driver string
	dsn    string
}

// parseURL maps sqlite://path, sqlite:///abs/path and postgres[ql]://... URLs
// to a driver and data source.
func parseURL(dbURL string) (target, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return target{}, fmt.Errorf("invalid database URL: %w", err)
	}
	switch u.Scheme {
	case "sqlite":
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return target{}, fmt.Errorf("sqlite URL needs a file path: %s", dbURL)
		}
		// Fact snapshots cascade on run deletion.
		return target{driver: driverSQLite, dsn: path + "?_foreign_keys=on"}, nil
	case "postgres", "postgresql":
		return target{driver: driverPostgres, dsn: dbURL}, nil
	}
	return target{}, fmt.Errorf("unsupported database scheme: %s (expected sqlite or postgres)", u.Scheme)
}

// Open connects to dbURL and verifies the connection. The schema is not touched.
func Open(dbURL string) (*sqlx.DB, error) {
	t, err := parseURL(dbURL)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(t.driver, t.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	limits := poolLimits[t.driver]
	db.SetMaxOpenConns(limits.open)
	db.SetMaxIdleConns(limits.idle)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// SchemaPolicy decides what OpenStore does with pending migrations.
type SchemaPolicy int

const (
	// RequireMigrated fails when any migration is pending.
	RequireMigrated SchemaPolicy = iota
	// AutoMigrate applies pending migrations before returning.
	AutoMigrate
)

// OpenStore connects to dbURL and returns a RunStore that owns the
// connection. Close the store to release it.
func OpenStore(dbURL string, policy SchemaPolicy) (*RunStore, error) {
	db, err := Open(dbURL)
	if err != nil {
		return nil, err
	}
	switch policy {
	case AutoMigrate:
		err = MigrateUp(db)
	default:
		err = CheckMigrated(db)
	}
	if err == nil {
		var store *RunStore
		if store, err = NewRunStore(db); err == nil {
			store.owned = true
			return store, nil
		}
	}
	db.Close()
	return nil, err
}
