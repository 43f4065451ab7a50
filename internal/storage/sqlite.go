package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage keeps rows as JSON documents in SQLite. Row ids are 0-based and dense.
type SQLiteStorage struct {
	db    *sql.DB
	keys  []string
	count int
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.loadMeta(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read table metadata: %w", err)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS columns (
		position INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS records (
		row_id INTEGER PRIMARY KEY,
		data TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStorage) loadMeta(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM columns ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		keys = append(keys, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return err
	}
	s.keys = keys
	s.count = count
	return nil
}

// Import replaces the table contents with rows in one transaction.
// Every row must carry every key.
func (s *SQLiteStorage) Import(ctx context.Context, keys []string, rows []Row) error {
	if _, err := NewMemoryStorage(keys, rows); err != nil {
		return fmt.Errorf("invalid import: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM columns`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return err
	}
	for i, k := range keys {
		if _, err := tx.ExecContext(ctx, `INSERT INTO columns (position, name) VALUES (?, ?)`, i, k); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (row_id, data) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, string(data)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.keys = append([]string(nil), keys...)
	s.count = len(rows)
	return nil
}

func (s *SQLiteStorage) Keys() []string { return append([]string(nil), s.keys...) }

func (s *SQLiteStorage) Len() int { return s.count }

// Get returns one row. JSON numbers come back as float64.
func (s *SQLiteStorage) Get(ctx context.Context, row int) (Row, error) {
	if err := checkRow(row, s.count); err != nil {
		return nil, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records WHERE row_id = ?`, row).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: row %d missing from records", ErrRowOutOfRange, row)
	}
	if err != nil {
		return nil, err
	}
	var r Row
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row %d: %w", row, err)
	}
	return r, nil
}

// Select returns the requested rows column-major, in request order.
func (s *SQLiteStorage) Select(ctx context.Context, rows []int) (Batch, error) {
	b := newBatch(s.keys, len(rows))
	for _, row := range rows {
		r, err := s.Get(ctx, row)
		if err != nil {
			return nil, err
		}
		b.append(s.keys, r)
	}
	return b, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
