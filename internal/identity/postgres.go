package identity

import (
	"context"
	"database/sql"
)

// PostgresStore persists identifiers in Postgres, for the bridge server where
// many devices share one process. The insert-if-absent keeps the write-once
// discipline even with concurrent first-time callers.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS identities (
			key        TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) LoadOrStore(ctx context.Context, key, candidate string) (string, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (key, identifier)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, candidate); err != nil {
		return "", err
	}

	var id string
	if err := s.db.QueryRowContext(ctx, `
		SELECT identifier FROM identities WHERE key = $1
	`, key).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}
