package store

import (
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore is a KV backed by one table of a SQLite database. Multiple
// stores (preferences, bundles) share a database by using distinct tables.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// Open opens (creating if necessary) a SQLite database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite at %s: %w", path, err)
	}
	return db, nil
}

// NewSQLite creates a SQLite-backed KV over the named table, creating the
// table if it does not exist. The table name must be a trusted identifier.
func NewSQLite(db *sql.DB, table string) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	if table == "" {
		return nil, fmt.Errorf("store: table name is required")
	}
	_, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`, table))
	if err != nil {
		return nil, fmt.Errorf("store: create table %s: %w", table, err)
	}
	return &SQLiteStore{db: db, table: table}, nil
}

// Get returns the value for key, with ok=false if the key was never written.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	row := s.db.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE key = ?", s.table), key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes or replaces the value for key.
func (s *SQLiteStore) Set(key, value string) error {
	_, err := s.db.Exec(fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, s.table), key, value)
	if err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE key = ?", s.table), key)
	if err != nil {
		return fmt.Errorf("store: delete %q: %w", key, err)
	}
	return nil
}

// Keys returns all keys with the given prefix, sorted.
func (s *SQLiteStore) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		fmt.Sprintf("SELECT key FROM %s WHERE key LIKE ? || '%%'", s.table), prefix)
	if err != nil {
		return nil, fmt.Errorf("store: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
