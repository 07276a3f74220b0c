package replay

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// StateDB tracks which recordings have already been scored into the local
// progression, and which of those reached the server.
type StateDB struct {
	db *sql.DB
}

// Entry is the stored state of one replayed recording.
type Entry struct {
	Path        string
	SessionFile string
	Uploaded    bool
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS replayed_recordings (
		hash         TEXT NOT NULL,
		exercise     TEXT NOT NULL,
		path         TEXT NOT NULL,
		size         INTEGER NOT NULL,
		session_file TEXT NOT NULL,
		uploaded     INTEGER NOT NULL DEFAULT 0,
		replayed_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (hash, exercise)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// Lookup returns the entry for a recording hash scored as exercise. ok is
// false when the recording has not been replayed.
func (s *StateDB) Lookup(hash, exercise string) (Entry, bool, error) {
	var e Entry
	err := s.db.QueryRow(
		`SELECT path, session_file, uploaded FROM replayed_recordings WHERE hash = ? AND exercise = ?`,
		hash, exercise,
	).Scan(&e.Path, &e.SessionFile, &e.Uploaded)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("looking up %s: %w", hash, err)
	}
	return e, true, nil
}

// MarkReplayed records that a recording was scored and its session written
// to sessionFile.
func (s *StateDB) MarkReplayed(hash, exercise, path string, size int64, sessionFile string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO replayed_recordings (hash, exercise, path, size, session_file, uploaded)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		hash, exercise, path, size, sessionFile,
	)
	return err
}

// MarkUploaded records that the session of a replayed recording reached the
// server.
func (s *StateDB) MarkUploaded(hash, exercise string) error {
	_, err := s.db.Exec(
		`UPDATE replayed_recordings SET uploaded = 1 WHERE hash = ? AND exercise = ?`,
		hash, exercise,
	)
	return err
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
