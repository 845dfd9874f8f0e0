package identity

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists identifiers in a local file, for shells that run on
// the user's own machine.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Identity lookups are rare and serialized by the resolver.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS identities (
			key        TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadOrStore(ctx context.Context, key, candidate string) (string, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO identities (key, identifier) VALUES (?, ?)
	`, key, candidate); err != nil {
		return "", err
	}

	var id string
	if err := s.db.QueryRowContext(ctx, `
		SELECT identifier FROM identities WHERE key = ?
	`, key).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
