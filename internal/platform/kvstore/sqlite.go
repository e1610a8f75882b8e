package kvstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/challenge-ladder/internal/platform/kvstore/migrations"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	_ "modernc.org/sqlite"
)

const maxTracedQueryLength = 512

var queryWhitespaceRegex = regexp.MustCompile(`\s+`)

// SQLiteStore persists entries in a single-table SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

type kvRow struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	UpdatedAt int64  `db:"updated_at"`
}

// OpenSQLite opens the store file and applies pending schema migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// NewMigrator builds a golang-migrate instance over the store file. Closing
// the migrator closes the database handle.
func NewMigrator(path string) (*migrate.Migrate, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	m, err := newMigrate(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrClosed
	}
	if key == "" {
		return "", false, crerr.New("key is required")
	}

	var row kvRow
	err := s.db.GetContext(ctx, &row, `SELECT key, value, updated_at FROM kv_entries WHERE key = ?`, key)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, crerr.Wrapf(err, "get kv entry key=%s", key)
	}
	return row.Value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if key == "" {
		return crerr.New("key is required")
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES (:key, :value, :updated_at)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		kvRow{Key: key, Value: value, UpdatedAt: time.Now().UTC().UnixMilli()},
	)
	if err != nil {
		return crerr.Wrapf(err, "set kv entry key=%s", key)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if key == "" {
		return crerr.New("key is required")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return crerr.Wrapf(err, "delete kv entry key=%s", key)
	}
	return nil
}

func openDB(path string) (*sqlx.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, crerr.New("store path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := otelsqlx.Open("sqlite", dsn,
		otelsql.WithDBSystem("sqlite"),
		otelsql.WithQueryFormatter(formatQueryForTrace),
	)
	if err != nil {
		return nil, crerr.Wrap(err, "open sqlite store")
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, crerr.Wrap(err, "ping sqlite store")
	}
	return db, nil
}

func newMigrate(db *sqlx.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, crerr.Wrap(err, "load embedded migrations")
	}
	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return nil, crerr.Wrap(err, "create sqlite migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, crerr.Wrap(err, "create migrator")
	}
	return m, nil
}

func migrateUp(db *sqlx.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return crerr.Wrap(err, "apply store migrations")
	}
	return nil
}

func formatQueryForTrace(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	normalized := queryWhitespaceRegex.ReplaceAllString(query, " ")
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}

	return normalized[:maxTracedQueryLength] + "..."
}
