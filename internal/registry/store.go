package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/Goosie/nostr-object-identity/internal/config"
)

// Store manages registry persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
	// writer holds one token while a Lock is outstanding in this process.
	writer chan struct{}
}

// Open initializes or connects to the registry database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.RegistryPath(), cfg.LockPath())
}

// OpenPath opens a registry at an explicit database and lock location.
func OpenPath(dbPath, lockPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: flock.New(lockPath), writer: make(chan struct{}, 1)}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }
