// Package sqlite provides a SQLite-backed record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	// Registers the sqlite3 driver with database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

// DefaultTable holds crawled records when Config.Table is empty.
const DefaultTable = "records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config locates the database file.
type Config struct {
	Path  string
	Table string
}

// RecordStore implements crawler.Store on a single SQLite file. SQLite allows
// one writer at a time; wrap it with serial.Store when workers append concurrently.
type RecordStore struct {
	db    *sql.DB
	table string
}

var _ crawler.Store = (*RecordStore)(nil)

// Open opens (creating if needed) the database at cfg.Path and ensures the schema.
func Open(ctx context.Context, cfg Config) (*RecordStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store.sqlite.path is required")
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1)

	store := &RecordStore{db: db, table: table}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *RecordStore) ensureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY,
	title TEXT NULL,
	source_url TEXT NULL,
	fetched_at TIMESTAMP NOT NULL
)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close closes the database handle.
func (s *RecordStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// KnownIDs returns every stored id.
func (s *RecordStore) KnownIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s", s.table))
	if err != nil {
		return nil, fmt.Errorf("query known ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan known id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate known ids: %w", err)
	}
	return ids, nil
}

// Append inserts rec; an id that is already stored is left untouched.
func (s *RecordStore) Append(ctx context.Context, rec crawler.Record) error {
	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (id, title, source_url, fetched_at) VALUES (?, ?, ?, ?)",
		s.table,
	)
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Title, rec.SourceURL, rec.FetchedAt.UTC()); err != nil {
		return fmt.Errorf("insert record %d: %w", rec.ID, err)
	}
	return nil
}

// Record loads a single record by id.
func (s *RecordStore) Record(ctx context.Context, id int64) (crawler.Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, title, source_url, fetched_at FROM %s WHERE id = ?", s.table), id)
	var (
		rec       crawler.Record
		title     sql.NullString
		sourceURL sql.NullString
	)
	if err := row.Scan(&rec.ID, &title, &sourceURL, &rec.FetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return crawler.Record{}, false, nil
		}
		return crawler.Record{}, false, fmt.Errorf("load record %d: %w", id, err)
	}
	if title.Valid {
		rec.Title = &title.String
	}
	if sourceURL.Valid {
		rec.SourceURL = &sourceURL.String
	}
	return rec, true, nil
}
