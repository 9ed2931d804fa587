// Package localdb provides the on-device survey store: an embedded SQLite
// database holding the five survey tables and their sync bookkeeping.
//
// The store is opened once per process and shared by every component that
// needs it (the record DAOs, the sync engine and the reset manager). Only the
// owner that opened it may close it.
//
// Architecture:
//   - Database file: <data dir>/survey.db (created if absent)
//   - WAL mode: concurrent readers while a sync pass writes
//   - Foreign keys ON with cascade delete from households/members
//   - synced + revision columns on every table
package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/hhsurvey/hhsync/internal/survey/schema"
)

// DB wraps the SQLite connection pool for the survey tables.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the survey database at path.
//
// Pragmas are passed in the DSN so they apply to every pooled connection,
// not only the first one.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{conn: conn, path: path}, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Size returns the on-disk size of the database plus its WAL, in bytes.
func (db *DB) Size() (int64, error) {
	info, err := os.Stat(db.path)
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if wal, err := os.Stat(db.path + "-wal"); err == nil {
		size += wal.Size()
	}
	return size, nil
}

// Close checkpoints the WAL and closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS households (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	district TEXT NOT NULL DEFAULT '',
	barangay TEXT NOT NULL DEFAULT '',
	sitio TEXT NOT NULL DEFAULT '',
	household_number TEXT NOT NULL UNIQUE CHECK (household_number <> ''),
	date_of_visit TEXT NOT NULL DEFAULT '',
	toilet_type TEXT NOT NULL DEFAULT '',
	water_source TEXT NOT NULL DEFAULT '',
	income_source TEXT NOT NULL DEFAULT '',
	has_vegetable_garden INTEGER NOT NULL DEFAULT 0,
	raises_livestock INTEGER NOT NULL DEFAULT 0,
	is_4ps_member INTEGER NOT NULL DEFAULT 0,
	synced INTEGER NOT NULL DEFAULT 0,
	revision INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS meal_patterns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	household_id INTEGER NOT NULL,
	breakfast TEXT NOT NULL DEFAULT '',
	lunch TEXT NOT NULL DEFAULT '',
	dinner TEXT NOT NULL DEFAULT '',
	food_beliefs TEXT NOT NULL DEFAULT '',
	health_considerations TEXT NOT NULL DEFAULT '',
	sickness_response TEXT NOT NULL DEFAULT '',
	checkup_frequency TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	revision INTEGER NOT NULL DEFAULT 1,
	FOREIGN KEY (household_id) REFERENCES households(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS members (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	household_id INTEGER NOT NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	relationship TEXT NOT NULL DEFAULT '',
	sex TEXT NOT NULL DEFAULT '',
	date_of_birth TEXT NOT NULL,
	age INTEGER NOT NULL DEFAULT 0,
	classification TEXT NOT NULL DEFAULT '',
	health_risks TEXT NOT NULL DEFAULT '',
	weight_kg REAL,
	height_cm REAL,
	education_level TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	revision INTEGER NOT NULL DEFAULT 1,
	FOREIGN KEY (household_id) REFERENCES households(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS member_health_info (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	member_id INTEGER NOT NULL,
	household_id INTEGER NOT NULL,
	philhealth INTEGER NOT NULL DEFAULT 0,
	family_planning INTEGER NOT NULL DEFAULT 0,
	last_menstrual_period TEXT NOT NULL DEFAULT '',
	smoker INTEGER NOT NULL DEFAULT 0,
	smoker_details TEXT NOT NULL DEFAULT '',
	drinks_alcohol INTEGER NOT NULL DEFAULT 0,
	alcohol_details TEXT NOT NULL DEFAULT '',
	physically_active INTEGER NOT NULL DEFAULT 0,
	activity_details TEXT NOT NULL DEFAULT '',
	has_morbidity INTEGER NOT NULL DEFAULT 0,
	morbidity_condition TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	revision INTEGER NOT NULL DEFAULT 1,
	FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE,
	FOREIGN KEY (household_id) REFERENCES households(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS immunizations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	member_id INTEGER NOT NULL,
	household_id INTEGER NOT NULL,
	bcg INTEGER NOT NULL DEFAULT 0,
	hepatitis_b INTEGER NOT NULL DEFAULT 0,
	pentavalent INTEGER NOT NULL DEFAULT 0,
	oral_polio INTEGER NOT NULL DEFAULT 0,
	measles_rubella INTEGER NOT NULL DEFAULT 0,
	pneumococcal INTEGER NOT NULL DEFAULT 0,
	remarks TEXT NOT NULL DEFAULT '',
	synced INTEGER NOT NULL DEFAULT 0,
	revision INTEGER NOT NULL DEFAULT 1,
	FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE,
	FOREIGN KEY (household_id) REFERENCES households(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_households_synced ON households(synced);
CREATE INDEX IF NOT EXISTS idx_meal_patterns_synced ON meal_patterns(synced);
CREATE INDEX IF NOT EXISTS idx_meal_patterns_household ON meal_patterns(household_id);
CREATE INDEX IF NOT EXISTS idx_members_synced ON members(synced);
CREATE INDEX IF NOT EXISTS idx_members_household ON members(household_id);
CREATE INDEX IF NOT EXISTS idx_health_info_synced ON member_health_info(synced);
CREATE INDEX IF NOT EXISTS idx_health_info_member ON member_health_info(member_id);
CREATE INDEX IF NOT EXISTS idx_immunizations_synced ON immunizations(synced);
CREATE INDEX IF NOT EXISTS idx_immunizations_member ON immunizations(member_id);
`

// InitSchema creates the five survey tables if they don't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Reset drops every survey table, clears their AUTOINCREMENT counters and
// recreates the schema, so new rows start again at id 1.
//
// Each step is attempted even if an earlier one failed; failures are logged
// as warnings and returned joined. There is no rollback.
func (db *DB) Reset(ctx context.Context, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(os.Stderr, "[localdb] ", log.LstdFlags)
	}

	var errs []error

	// Children first so no FK points at a dropped parent.
	for i := len(schema.SyncOrder) - 1; i >= 0; i-- {
		table := schema.SyncOrder[i]
		if _, err := db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			logger.Printf("WARNING: failed to drop table %s: %v", table, err)
			errs = append(errs, fmt.Errorf("drop %s: %w", table, err))
		}
	}

	for _, table := range schema.SyncOrder {
		if _, err := db.conn.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", table); err != nil {
			logger.Printf("WARNING: failed to reset id sequence for %s: %v", table, err)
			errs = append(errs, fmt.Errorf("reset sequence %s: %w", table, err))
		}
	}

	if err := db.InitSchemaContext(ctx); err != nil {
		logger.Printf("WARNING: failed to recreate schema: %v", err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Count returns the number of rows in table.
func (db *DB) Count(ctx context.Context, table string) (int, error) {
	return db.count(ctx, table, "")
}

// CountUnsynced returns the number of rows in table with synced = 0.
func (db *DB) CountUnsynced(ctx context.Context, table string) (int, error) {
	return db.count(ctx, table, " WHERE synced = 0")
}

func (db *DB) count(ctx context.Context, table, where string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+where).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// MarkSynced flips synced to 1 for the row, but only if it is still at the
// pushed revision. It reports whether the row was marked; false means the row
// changed (or vanished) after it was read and stays unsynced.
func (db *DB) MarkSynced(ctx context.Context, table string, id, revision int64) (bool, error) {
	if err := checkTable(table); err != nil {
		return false, err
	}
	res, err := db.conn.ExecContext(ctx,
		"UPDATE "+table+" SET synced = 1 WHERE id = ? AND revision = ?", id, revision)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s#%d synced: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s#%d synced: %w", table, id, err)
	}
	return n == 1, nil
}

// Unsynced returns all rows of table with synced = 0, in id order.
func (db *DB) Unsynced(ctx context.Context, table string) ([]schema.Record, error) {
	var out []schema.Record
	switch table {
	case schema.TableHouseholds:
		rows, err := db.ListHouseholds(ctx, true)
		for _, r := range rows {
			out = append(out, r)
		}
		return out, err
	case schema.TableMembers:
		rows, err := db.ListMembers(ctx, true)
		for _, r := range rows {
			out = append(out, r)
		}
		return out, err
	case schema.TableMealPatterns:
		rows, err := db.ListMealPatterns(ctx, true)
		for _, r := range rows {
			out = append(out, r)
		}
		return out, err
	case schema.TableHealthInfo:
		rows, err := db.ListHealthInfo(ctx, true)
		for _, r := range rows {
			out = append(out, r)
		}
		return out, err
	case schema.TableImmunization:
		rows, err := db.ListImmunizations(ctx, true)
		for _, r := range rows {
			out = append(out, r)
		}
		return out, err
	default:
		return nil, checkTable(table)
	}
}

func checkTable(table string) error {
	for _, t := range schema.SyncOrder {
		if t == table {
			return nil
		}
	}
	return fmt.Errorf("unknown table %q", table)
}
