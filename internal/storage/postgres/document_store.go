package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DocumentStore caches page content in a url-unique table.
type DocumentStore struct {
	db    DB
	table string
}

// NewDocumentStore constructs a DocumentStore over db. An empty table defaults
// to "documents".
func NewDocumentStore(db DB, table string) (*DocumentStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, "documents")
	if err != nil {
		return nil, err
	}
	return &DocumentStore{db: db, table: name}, nil
}

// EnsureSchema creates the documents table and its url index when missing.
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id SERIAL PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL
)`, s.table)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_url ON %[1]s (url)`, s.table)
	if _, err := s.db.Exec(ctx, index); err != nil {
		return fmt.Errorf("create %s url index: %w", s.table, err)
	}
	return nil
}

// Get returns the content stored for url.
func (s *DocumentStore) Get(ctx context.Context, url string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT content FROM %s WHERE url = $1`, s.table)
	var content string
	err := s.db.QueryRow(ctx, query, url).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select document: %w", err)
	}
	return content, true, nil
}

// PutIfAbsent inserts content for url; existing rows are left untouched.
func (s *DocumentStore) PutIfAbsent(ctx context.Context, url string, content string) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO %s (url, content) VALUES ($1, $2) ON CONFLICT (url) DO NOTHING`, s.table)
	tag, err := s.db.Exec(ctx, query, url, content)
	if err != nil {
		return false, fmt.Errorf("insert document: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
