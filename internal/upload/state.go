package upload

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

	"github.com/claude/formcoach/internal/models"
)

// StateDB tracks which videos have already been analyzed to avoid re-sending.
type StateDB struct {
	db *sql.DB
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

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS analyzed_videos (
		path        TEXT PRIMARY KEY,
		size        INTEGER NOT NULL,
		hash        TEXT NOT NULL,
		original    TEXT NOT NULL,
		processed   TEXT NOT NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsUploaded checks if a file has already been analyzed with the same size and hash.
func (s *StateDB) IsUploaded(relPath string, size int64, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM analyzed_videos WHERE path = ? AND size = ? AND hash = ?`,
		relPath, size, hash,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkUploaded records that a file was analyzed and where its results live.
func (s *StateDB) MarkUploaded(relPath string, size int64, hash string, res models.UploadResult) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO analyzed_videos (path, size, hash, original, processed) VALUES (?, ?, ?, ?, ?)`,
		relPath, size, hash, res.Original, res.Processed,
	)
	return err
}

// Result returns the recorded URLs for relPath. ok is false when the file
// has never been analyzed.
func (s *StateDB) Result(relPath string) (res models.UploadResult, ok bool, err error) {
	err = s.db.QueryRow(
		`SELECT original, processed FROM analyzed_videos WHERE path = ?`, relPath,
	).Scan(&res.Original, &res.Processed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UploadResult{}, false, nil
	}
	if err != nil {
		return models.UploadResult{}, false, err
	}
	return res, true, nil
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
