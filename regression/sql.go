package regression

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/shipq/dicetest/dburl"
	"github.com/shipq/dicetest/dicetest"
)

const tableName = "dicetest_regressions"

// sqliteTime sorts lexically in time order.
const sqliteTime = "2006-01-02 15:04:05.000000000"

// SQLStore keeps regressions in a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// OpenSQL connects to the database rawURL names and creates the
// regressions table if needed. Parent directories of a sqlite file are
// created too.
func OpenSQL(ctx context.Context, rawURL string) (*SQLStore, error) {
	u, err := dburl.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	if u.Dialect == dburl.DialectSQLite && !dburl.IsMemory(rawURL) {
		path, _, _ := strings.Cut(u.DSN, "?")
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open(u.DriverName, u.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", u, err)
	}
	if u.Dialect == dburl.DialectSQLite {
		// One connection: every :memory: connection is its own database,
		// and a single writer avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", u, err)
	}

	s := NewSQLStore(db, u.Dialect)
	if err := s.EnsureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. Call EnsureTable before use.
func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

// EnsureTable creates the dicetest_regressions table if it doesn't exist.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	var createSQL string

	switch s.dialect {
	case dburl.DialectPostgres:
		createSQL = `
			CREATE TABLE IF NOT EXISTS dicetest_regressions (
				id          VARCHAR(36) PRIMARY KEY,
				fingerprint VARCHAR(32) NOT NULL,
				property    TEXT NOT NULL,
				code        TEXT NOT NULL,
				detail      TEXT NOT NULL,
				created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE (fingerprint, code)
			)`
	case dburl.DialectMySQL:
		createSQL = `
			CREATE TABLE IF NOT EXISTS dicetest_regressions (
				id          VARCHAR(36) PRIMARY KEY,
				fingerprint VARCHAR(32) NOT NULL,
				property    TEXT NOT NULL,
				code        VARCHAR(700) NOT NULL,
				detail      TEXT NOT NULL,
				created_at  TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
				UNIQUE KEY fingerprint_code (fingerprint, code)
			)`
	case dburl.DialectSQLite:
		createSQL = `
			CREATE TABLE IF NOT EXISTS dicetest_regressions (
				id          TEXT PRIMARY KEY,
				fingerprint TEXT NOT NULL,
				property    TEXT NOT NULL,
				code        TEXT NOT NULL,
				detail      TEXT NOT NULL,
				created_at  TEXT NOT NULL,
				UNIQUE (fingerprint, code)
			)`
	default:
		return fmt.Errorf("unsupported dialect: %s", s.dialect)
	}

	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create %s: %w", tableName, err)
	}
	return nil
}

// placeholders returns n bind parameters in the dialect's style.
func (s *SQLStore) placeholders(n int) []string {
	ps := make([]string, n)
	for i := range ps {
		if s.dialect == dburl.DialectPostgres {
			ps[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ps[i] = "?"
		}
	}
	return ps
}

func (s *SQLStore) Load(ctx context.Context, property string) ([]dicetest.RunCode, error) {
	p := s.placeholders(1)
	rows, err := s.db.QueryContext(ctx,
		"SELECT code FROM dicetest_regressions WHERE fingerprint = "+p[0]+" ORDER BY created_at, code",
		Fingerprint(property))
	if err != nil {
		return nil, fmt.Errorf("failed to query regressions: %w", err)
	}
	defer rows.Close()

	var codes []dicetest.RunCode
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan regression: %w", err)
		}
		code, err := dicetest.ParseRunCode(raw)
		if err != nil {
			return nil, fmt.Errorf("stored regression for %s: %w", property, err)
		}
		codes = append(codes, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regressions: %w", err)
	}
	return codes, nil
}

func (s *SQLStore) Save(ctx context.Context, property string, code dicetest.RunCode, detail string) error {
	p := s.placeholders(6)
	cols := "(id, fingerprint, property, code, detail, created_at) VALUES (" + strings.Join(p, ", ") + ")"

	var insertSQL string
	switch s.dialect {
	case dburl.DialectPostgres:
		insertSQL = "INSERT INTO dicetest_regressions " + cols + " ON CONFLICT (fingerprint, code) DO NOTHING"
	case dburl.DialectMySQL:
		insertSQL = "INSERT IGNORE INTO dicetest_regressions " + cols
	case dburl.DialectSQLite:
		insertSQL = "INSERT OR IGNORE INTO dicetest_regressions " + cols
	default:
		return fmt.Errorf("unsupported dialect: %s", s.dialect)
	}

	_, err := s.db.ExecContext(ctx, insertSQL,
		uuid.NewString(), Fingerprint(property), property, code.String(), detail, s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to save regression for %s: %w", property, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, property string) (int, error) {
	p := s.placeholders(1)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM dicetest_regressions WHERE fingerprint = "+p[0], Fingerprint(property))
	if err != nil {
		return 0, fmt.Errorf("failed to delete regressions for %s: %w", property, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, property, fingerprint, code, detail, created_at FROM dicetest_regressions ORDER BY property, created_at, code")
	if err != nil {
		return nil, fmt.Errorf("failed to query regressions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			id, raw string
			created any
		)
		if err := rows.Scan(&id, &e.Property, &e.Fingerprint, &raw, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("failed to scan regression: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("regression id %q: %w", id, err)
		}
		if e.Code, err = dicetest.ParseRunCode(raw); err != nil {
			return nil, fmt.Errorf("stored regression for %s: %w", e.Property, err)
		}
		if e.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regressions: %w", err)
	}
	return entries, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) timestamp() any {
	now := s.now().UTC()
	if s.dialect == dburl.DialectSQLite {
		return now.Format(sqliteTime)
	}
	return now
}

func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(sqliteTime, t)
	case []byte:
		return time.Parse(sqliteTime, string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected created_at type %T", v)
	}
}
