package db

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	embeddedmigrations "github.com/solatis/sweetbre/migrations"
)

/*
 * Schema migrations.
 *
 * Each driver has its own directory of numbered .sql files embedded in the
 * binary. Files apply in name order, each in one transaction together with
 * its row in the migrations table. A recorded checksum that no longer
 * matches the embedded file stops MigrateUp: applied migrations are never
 * edited, only followed by new ones.
 */

// ErrPendingMigrations is returned by CheckMigrated when the schema is behind.
var ErrPendingMigrations = errors.New("pending migrations")

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// appliedRow is one row of the migrations table. sqlite keeps applied_at as
// RFC 3339 text, postgres as a timestamp.
type appliedRow struct {
	ID          string `db:"migration_id"`
	Checksum    string `db:"checksum"`
	AppliedAt   any    `db:"applied_at"`
	ExecutionMs int64  `db:"execution_ms"`
}

// migrator binds a connection to the embedded migrations of its driver.
type migrator struct {
	db    *sqlx.DB
	files []migration
}

func newMigrator(db *sqlx.DB) (*migrator, error) {
	fsys, dir, err := source(db.DriverName())
	if err != nil {
		return nil, err
	}
	files, err := readMigrations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	if _, err := db.Exec(trackingTable(db.DriverName())); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return &migrator{db: db, files: files}, nil
}

func (m *migrator) applied() (map[string]appliedRow, error) {
	var rows []appliedRow
	if err := m.db.Select(&rows, "SELECT migration_id, checksum, applied_at, execution_ms FROM migrations"); err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	out := make(map[string]appliedRow, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// MigrateUp applies every pending migration after validating the checksums
// of those already applied.
func MigrateUp(db *sqlx.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	applied, err := m.applied()
	if err != nil {
		return err
	}
	if err := m.validate(applied); err != nil {
		return fmt.Errorf("migration checksum validation failed: %w", err)
	}
	for _, f := range m.files {
		if _, ok := applied[f.ID]; ok {
			continue
		}
		if err := m.apply(f); err != nil {
			return err
		}
	}
	return nil
}

// MigrateStatus returns the status of all migrations (applied and pending).
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	m, err := newMigrator(db)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied()
	if err != nil {
		return nil, err
	}
	statuses := make([]MigrationStatus, 0, len(m.files))
	for _, f := range m.files {
		s := MigrationStatus{ID: f.ID, Checksum: f.Checksum}
		if r, ok := applied[f.ID]; ok {
			s.Checksum = r.Checksum
			s.Applied = true
			s.AppliedAt = appliedTime(r.AppliedAt)
			s.ExecutionMs = r.ExecutionMs
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// CheckMigrated returns ErrPendingMigrations naming the first migration not yet applied.
func CheckMigrated(db *sqlx.DB) error {
	statuses, err := MigrateStatus(db)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("%w: %s not applied - run 'sweetbre migrate' first", ErrPendingMigrations, s.ID)
		}
	}
	return nil
}

func (m *migrator) validate(applied map[string]appliedRow) error {
	embedded := make(map[string]string, len(m.files))
	for _, f := range m.files {
		embedded[f.ID] = f.Checksum
	}
	for id, r := range applied {
		want, ok := embedded[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if r.Checksum != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, want, r.Checksum)
		}
	}
	return nil
}

// apply runs f and records it in one transaction.
func (m *migrator) apply(f migration) error {
	start := time.Now()
	tx, err := m.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", f.ID, err)
	}
	defer tx.Rollback()

	// lib/pq runs one statement per Exec.
	for _, stmt := range splitStatements(f.SQL) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", f.ID, err)
		}
	}

	var appliedAt any = time.Now().UTC()
	if tx.DriverName() == driverSQLite {
		appliedAt = appliedAt.(time.Time).Format(time.RFC3339)
	}
	insert := tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)")
	if _, err := tx.Exec(insert, f.ID, f.Checksum, appliedAt, time.Since(start).Milliseconds()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", f.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", f.ID, err)
	}
	return nil
}

func source(driver string) (fs.FS, string, error) {
	switch driver {
	case driverSQLite:
		return embeddedmigrations.SqliteMigrations, "sqlite", nil
	case driverPostgres:
		return embeddedmigrations.PostgresMigrations, "postgres", nil
	}
	return nil, "", fmt.Errorf("unsupported database driver: %s", driver)
}

// readMigrations loads dir's .sql files sorted by name with their SHA-256 checksums.
func readMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(content)
		out = append(out, migration{ID: e.Name(), Checksum: hex.EncodeToString(sum[:]), SQL: string(content)})
	}
	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// trackingTable must match the migrations table in 001_initial_schema.sql.
func trackingTable(driver string) string {
	if driver == driverSQLite {
		return `CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			execution_ms INTEGER NOT NULL,
			CHECK (applied_at LIKE '____-__-__T__:__:__Z')
		)`
	}
	return `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
		execution_ms INTEGER NOT NULL
	)`
}

func appliedTime(v any) *time.Time {
	var text string
	switch v := v.(type) {
	case time.Time:
		return &v
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return nil
	}
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return nil
	}
	return &t
}

// splitStatements drops "--" comment lines and splits on semicolons.
func splitStatements(script string) []string {
	var b strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
