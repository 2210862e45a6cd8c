package bundle

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound indicates no bundle exists under the requested hash.
var ErrNotFound = errors.New("bundle not found")

// Store persists bundles in SQLite keyed by script hash. It doubles as a
// compile cache: looking up a script's hash before compiling skips the
// whole pipeline when the source hasn't changed.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens (creating if needed) a bundle store at the given path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS bundles (
		hash TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put saves a bundle under its script hash, replacing any previous bundle
// built from the same source.
func (s *Store) Put(b *Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO bundles (hash, name, data, created) VALUES (?, ?, ?, ?)",
		b.Hash(), b.Name, data, b.Created,
	)
	if err != nil {
		return fmt.Errorf("saving bundle: %w", err)
	}
	return nil
}

// Get loads the bundle stored under the given script hash.
func (s *Store) Get(hash string) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow("SELECT data FROM bundles WHERE hash = ?", hash).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying bundle: %w", err)
	}
	return Unmarshal(data)
}

// Delete removes the bundle stored under the given script hash. Deleting
// a missing hash is not an error.
func (s *Store) Delete(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM bundles WHERE hash = ?", hash); err != nil {
		return fmt.Errorf("deleting bundle: %w", err)
	}
	return nil
}

// List returns the stored bundle names, newest first.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT name FROM bundles ORDER BY created DESC")
	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning bundle name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
