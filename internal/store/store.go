// Package store is the durable key-value collaborator. Every piece of
// cross-restart state (analytics, conversations, queue, anti-detection log,
// provider rate limits) lives here as a JSON value under a string key.
// Counters must go through Update so concurrent writers merge instead of
// clobbering each other.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Well-known keys
const (
	KeyStealthMode         = "stealthMode"
	KeyDiagnosticLog       = "diagnosticLog"
	KeyActiveAI            = "activeAI"
	KeyAIPerformance       = "aiPerformance"
	KeyAIRateLimits        = "aiRateLimits"
	KeyActiveConversations = "activeConversations"
	KeyMessageQueue        = "messageQueue"
	KeyMessagingStats      = "messagingStats"
	KeySessionAnalytics    = "sessionAnalytics"
	KeyAllTimeAnalytics    = "allTimeAnalytics"
	KeySelectedLanguages   = "selectedLanguages"
	KeySwipeConfig         = "swipeConfig"
)

// Store handles all database operations
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	subs []func(key string)
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get unmarshals the value at key into v. Returns false if the key is unset.
func (s *Store) Get(key string, v any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode stored %s: %w", key, err)
	}
	return true, nil
}

// Set stores v at key, replacing any previous value
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(raw))
	if err != nil {
		return err
	}

	s.notify(key)
	return nil
}

// Update performs a read-merge-write on key inside a transaction. fn receives
// the raw stored JSON (nil when unset) and returns the replacement value.
func (s *Store) Update(key string, fn func(raw []byte) (any, error)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw sql.NullString
	err = tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	var cur []byte
	if raw.Valid {
		cur = []byte(raw.String)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	_, err = tx.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(encoded))
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.notify(key)
	return nil
}

// Subscribe registers a change-notification callback. Callbacks run
// synchronously after each Set/Update commit.
func (s *Store) Subscribe(fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Store) notify(key string) {
	s.mu.Lock()
	subs := make([]func(string), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(key)
	}
}
