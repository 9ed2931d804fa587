package remote

import (
	"fmt"
	"strings"
)

// Dialect captures the differences between the supported remote databases.
type Dialect struct {
	Name   string
	Driver string
	// Bind renders the n-th (1-based) bind parameter.
	Bind func(n int) string
	// DDL creates the remote tables if they do not exist.
	DDL string
}

var (
	// Postgres targets Supabase and any plain Postgres through pgx.
	Postgres = Dialect{
		Name:   "postgres",
		Driver: "pgx",
		Bind:   func(n int) string { return fmt.Sprintf("$%d", n) },
		DDL:    postgresDDL,
	}

	// LibSQL targets a Turso database through go-libsql.
	LibSQL = Dialect{
		Name:   "libsql",
		Driver: "libsql",
		Bind:   func(int) string { return "?" },
		DDL:    sqliteDDL,
	}

	// SQLite targets a plain SQLite file. Useful for tests and for a
	// file-based "remote" on a shared drive.
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite3",
		Bind:   func(int) string { return "?" },
		DDL:    sqliteDDL,
	}
)

// DialectFor picks the dialect from the URL scheme and returns the DSN the
// driver expects.
//
//	postgres://, postgresql://   -> Postgres
//	libsql://, https://*.turso.io -> LibSQL (authToken appended when given)
//	sqlite://<path>, file:<path> -> SQLite
func DialectFor(url, authToken string) (Dialect, string, error) {
	switch {
	case url == "":
		return Dialect{}, "", ErrNotConfigured
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Postgres, url, nil
	case strings.HasPrefix(url, "libsql://"),
		strings.HasPrefix(url, "https://") && strings.Contains(url, ".turso.io"):
		dsn := url
		if authToken != "" && !strings.Contains(url, "authToken=") {
			sep := "?"
			if strings.Contains(url, "?") {
				sep = "&"
			}
			dsn = url + sep + "authToken=" + authToken
		}
		return LibSQL, dsn, nil
	case strings.HasPrefix(url, "sqlite://"):
		return SQLite, withForeignKeys("file:" + strings.TrimPrefix(url, "sqlite://")), nil
	case strings.HasPrefix(url, "file:"):
		return SQLite, withForeignKeys(url), nil
	default:
		return Dialect{}, "", fmt.Errorf("unsupported remote url %q", url)
	}
}

const postgresDDL = `
CREATE TABLE IF NOT EXISTS households (
	id BIGINT PRIMARY KEY,
	district TEXT NOT NULL DEFAULT '',
	barangay TEXT NOT NULL DEFAULT '',
	sitio TEXT NOT NULL DEFAULT '',
	household_number TEXT NOT NULL UNIQUE,
	date_of_visit TEXT NOT NULL DEFAULT '',
	toilet_type TEXT NOT NULL DEFAULT '',
	water_source TEXT NOT NULL DEFAULT '',
	income_source TEXT NOT NULL DEFAULT '',
	has_vegetable_garden BOOLEAN NOT NULL DEFAULT FALSE,
	raises_livestock BOOLEAN NOT NULL DEFAULT FALSE,
	is_4ps_member BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS members (
	id BIGINT PRIMARY KEY,
	household_id BIGINT NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	relationship TEXT NOT NULL DEFAULT '',
	sex TEXT NOT NULL DEFAULT '',
	date_of_birth TEXT NOT NULL,
	age INTEGER NOT NULL DEFAULT 0,
	classification TEXT NOT NULL DEFAULT '',
	health_risks TEXT NOT NULL DEFAULT '',
	weight_kg DOUBLE PRECISION,
	height_cm DOUBLE PRECISION,
	education_level TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS meal_patterns (
	id BIGINT PRIMARY KEY,
	household_id BIGINT NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	breakfast TEXT NOT NULL DEFAULT '',
	lunch TEXT NOT NULL DEFAULT '',
	dinner TEXT NOT NULL DEFAULT '',
	food_beliefs TEXT NOT NULL DEFAULT '',
	health_considerations TEXT NOT NULL DEFAULT '',
	sickness_response TEXT NOT NULL DEFAULT '',
	checkup_frequency TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS member_health_info (
	id BIGINT PRIMARY KEY,
	member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	household_id BIGINT NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	philhealth BOOLEAN NOT NULL DEFAULT FALSE,
	family_planning BOOLEAN NOT NULL DEFAULT FALSE,
	last_menstrual_period TEXT NOT NULL DEFAULT '',
	smoker BOOLEAN NOT NULL DEFAULT FALSE,
	smoker_details TEXT NOT NULL DEFAULT '',
	drinks_alcohol BOOLEAN NOT NULL DEFAULT FALSE,
	alcohol_details TEXT NOT NULL DEFAULT '',
	physically_active BOOLEAN NOT NULL DEFAULT FALSE,
	activity_details TEXT NOT NULL DEFAULT '',
	has_morbidity BOOLEAN NOT NULL DEFAULT FALSE,
	morbidity_condition TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS immunizations (
	id BIGINT PRIMARY KEY,
	member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	household_id BIGINT NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	bcg BOOLEAN NOT NULL DEFAULT FALSE,
	hepatitis_b BOOLEAN NOT NULL DEFAULT FALSE,
	pentavalent BOOLEAN NOT NULL DEFAULT FALSE,
	oral_polio BOOLEAN NOT NULL DEFAULT FALSE,
	measles_rubella BOOLEAN NOT NULL DEFAULT FALSE,
	pneumococcal BOOLEAN NOT NULL DEFAULT FALSE,
	remarks TEXT NOT NULL DEFAULT ''
);
`

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS households (
	id INTEGER PRIMARY KEY,
	district TEXT NOT NULL DEFAULT '',
	barangay TEXT NOT NULL DEFAULT '',
	sitio TEXT NOT NULL DEFAULT '',
	household_number TEXT NOT NULL UNIQUE,
	date_of_visit TEXT NOT NULL DEFAULT '',
	toilet_type TEXT NOT NULL DEFAULT '',
	water_source TEXT NOT NULL DEFAULT '',
	income_source TEXT NOT NULL DEFAULT '',
	has_vegetable_garden INTEGER NOT NULL DEFAULT 0,
	raises_livestock INTEGER NOT NULL DEFAULT 0,
	is_4ps_member INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS members (
	id INTEGER PRIMARY KEY,
	household_id INTEGER NOT NULL REFERENCES households(id) ON DELETE CASCADE,
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
	education_level TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS meal_patterns (
	id INTEGER PRIMARY KEY,
	household_id INTEGER NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	breakfast TEXT NOT NULL DEFAULT '',
	lunch TEXT NOT NULL DEFAULT '',
	dinner TEXT NOT NULL DEFAULT '',
	food_beliefs TEXT NOT NULL DEFAULT '',
	health_considerations TEXT NOT NULL DEFAULT '',
	sickness_response TEXT NOT NULL DEFAULT '',
	checkup_frequency TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS member_health_info (
	id INTEGER PRIMARY KEY,
	member_id INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	household_id INTEGER NOT NULL REFERENCES households(id) ON DELETE CASCADE,
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
	morbidity_condition TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS immunizations (
	id INTEGER PRIMARY KEY,
	member_id INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
	household_id INTEGER NOT NULL REFERENCES households(id) ON DELETE CASCADE,
	bcg INTEGER NOT NULL DEFAULT 0,
	hepatitis_b INTEGER NOT NULL DEFAULT 0,
	pentavalent INTEGER NOT NULL DEFAULT 0,
	oral_polio INTEGER NOT NULL DEFAULT 0,
	measles_rubella INTEGER NOT NULL DEFAULT 0,
	pneumococcal INTEGER NOT NULL DEFAULT 0,
	remarks TEXT NOT NULL DEFAULT ''
);
`

// withForeignKeys turns on FK enforcement for every pooled SQLite connection.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
