// internal/readinglist/implementation.go
package readinglist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shelfboard/internal/sqlutil"
)

// service implements the Service interface.
type service struct {
	db      *sql.DB
	dialect sqlutil.Dialect
	now     func() time.Time
}

func NewService(db *sql.DB, d sqlutil.Dialect) Service {
	return &service{
		db:      db,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the reading_list table.
func Migrate(ctx context.Context, db *sql.DB, d sqlutil.Dialect) error {
	ts := "DATETIME"
	if d == sqlutil.Postgres {
		ts = "TIMESTAMPTZ"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reading_list (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			added_at ` + ts + ` NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS reading_list_owner_idx ON reading_list (owner_id, added_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply reading list schema: %w", err)
		}
	}
	return nil
}

func (s *service) Add(ctx context.Context, ownerID, title, author string) (*Entry, error) {
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if title == "" || author == "" {
		return nil, ErrMissingField
	}

	entry := &Entry{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Title:   title,
		Author:  author,
		AddedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO reading_list (id, owner_id, title, author, added_at)
		VALUES (?, ?, ?, ?, ?)
	`), entry.ID.String(), entry.OwnerID, entry.Title, entry.Author, entry.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("insert reading list entry: %w", err)
	}
	return entry, nil
}

func (s *service) Remove(ctx context.Context, ownerID string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		DELETE FROM reading_list WHERE id = ? AND owner_id = ?
	`), id.String(), ownerID)
	if err != nil {
		return fmt.Errorf("delete reading list entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns the owner's entries, oldest first.
func (s *service) List(ctx context.Context, ownerID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT id, owner_id, title, author, added_at
		FROM reading_list
		WHERE owner_id = ?
		ORDER BY added_at, id
	`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("query reading list: %w", err)
	}

	entries, err := sqlutil.ScanRows(rows, func(rows *sql.Rows) (Entry, error) {
		var (
			e  Entry
			id string
		)
		if err := rows.Scan(&id, &e.OwnerID, &e.Title, &e.Author, &e.AddedAt); err != nil {
			return e, err
		}
		var err error
		e.ID, err = uuid.Parse(id)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan reading list: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
