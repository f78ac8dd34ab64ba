// Package sqlite provides SQLite-based persistent storage for ember.
// Uses WAL mode for concurrent reads and crash-safe writes. All logs
// (decisions, checkpoints, abort episodes, thermal trace) are
// append-only tables partitioned by task id.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/ember.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "ember.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Task fact base (owned by the external queue; ember reads,
		// and records status transitions on its behalf)
		`CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			category    TEXT NOT NULL,
			power_w     REAL NOT NULL,
			duration_s  INTEGER NOT NULL,
			segmentable BOOLEAN NOT NULL DEFAULT 0,
			urgency     INTEGER NOT NULL DEFAULT 1,
			status      TEXT NOT NULL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,

		// Device thermal profiles
		`CREATE TABLE IF NOT EXISTS profiles (
			id           TEXT PRIMARY KEY,
			thermal_mass REAL NOT NULL,
			cooling_rate REAL NOT NULL,
			cooling_eff  REAL NOT NULL,
			power_eff    REAL NOT NULL,
			optimal_max  REAL NOT NULL,
			safe_max     REAL NOT NULL,
			warning_max  REAL NOT NULL,
			critical     REAL NOT NULL
		)`,

		// Checkpoint log — append-only, strictly increasing seq per task
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id          TEXT PRIMARY KEY,
			task_id     TEXT NOT NULL,
			seq         INTEGER NOT NULL,
			progress    REAL NOT NULL,
			state       BLOB,
			output      BLOB,
			reason      TEXT NOT NULL,
			no_producer BOOLEAN NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL,
			UNIQUE(task_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_task ON checkpoints(task_id, seq)`,

		// Decision audit log — append-only
		`CREATE TABLE IF NOT EXISTS decisions (
			id         TEXT PRIMARY KEY,
			task_id    TEXT NOT NULL,
			verdict    TEXT NOT NULL,
			reason     TEXT NOT NULL,
			checks     TEXT NOT NULL DEFAULT '[]',
			retry_in_s INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_task ON decisions(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at)`,

		// Abort episodes — immutable analytics records
		`CREATE TABLE IF NOT EXISTS abort_episodes (
			id              TEXT PRIMARY KEY,
			task_id         TEXT NOT NULL,
			reason          TEXT NOT NULL,
			temp_at_trigger REAL NOT NULL,
			peak_temp       REAL NOT NULL,
			elapsed_s       REAL NOT NULL,
			alert_count     INTEGER NOT NULL,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_task ON abort_episodes(task_id)`,

		// Thermal trace — one row per supervisor tick
		`CREATE TABLE IF NOT EXISTS thermal_trace (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id    TEXT NOT NULL,
			temp       REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trace_task ON thermal_trace(task_id, id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
