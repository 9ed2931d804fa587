package remote

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"       // pgx driver for Supabase/Postgres
	_ "github.com/ncruces/go-sqlite3/driver" // SQLite driver for file remotes
	_ "github.com/ncruces/go-sqlite3/embed"  // embedded SQLite WASM
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var _ Store = (*SQLStore)(nil)

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	conn    *sql.DB
	dialect Dialect
}

// Open prepares a connection pool for the remote named by url. The dialect
// follows the URL scheme, see DialectFor. No connection is made until first
// use, so Open succeeds while the device is offline.
func Open(url, authToken string) (*SQLStore, error) {
	dialect, dsn, err := DialectFor(url, authToken)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s remote: %w", dialect.Name, err)
	}
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &SQLStore{conn: conn, dialect: dialect}, nil
}

// Dialect returns the dialect the store was opened with.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// EnsureSchema creates the remote tables if they are missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(s.dialect.DDL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create remote schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.conn.Close()
}

func (s *SQLStore) Upsert(ctx context.Context, table string, cols []string, vals []any) error {
	if err := checkIdents(table, cols...); err != nil {
		return err
	}
	if len(cols) == 0 || cols[0] != "id" {
		return fmt.Errorf("upsert %s: first column must be id", table)
	}
	if len(cols) != len(vals) {
		return fmt.Errorf("upsert %s: %d columns but %d values", table, len(cols), len(vals))
	}

	binds := make([]string, len(cols))
	for i := range cols {
		binds[i] = s.dialect.Bind(i + 1)
	}
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), strings.Join(binds, ", "), strings.Join(sets, ", "),
	)
	if _, err := s.conn.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("failed to upsert %s/%v: %w", table, vals[0], err)
	}
	return nil
}

func (s *SQLStore) Exists(ctx context.Context, table string, id int64) (bool, error) {
	if err := checkIdents(table); err != nil {
		return false, err
	}
	var one int
	err := s.conn.QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE id = %s", table, s.dialect.Bind(1)), id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s/%d: %w", table, id, err)
	}
	return true, nil
}

func (s *SQLStore) Select(ctx context.Context, table string, filter Filter) ([]Row, error) {
	where, args, err := s.where(table, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s%s ORDER BY id", table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	where, args, err := s.where(table, filter)
	if err != nil {
		return 0, err
	}
	res, err := s.conn.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s%s", table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return res.RowsAffected()
}

// where renders filter as a WHERE clause with keys in sorted order.
func (s *SQLStore) where(table string, filter Filter) (string, []any, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := checkIdents(table, keys...); err != nil {
		return "", nil, err
	}
	if len(keys) == 0 {
		return "", nil, nil
	}
	conds := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		conds[i] = fmt.Sprintf("%s = %s", k, s.dialect.Bind(i+1))
		args[i] = filter[k]
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func checkIdents(table string, cols ...string) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	for _, c := range cols {
		if !identRe.MatchString(c) {
			return fmt.Errorf("invalid column name %q", c)
		}
	}
	return nil
}
