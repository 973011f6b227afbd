package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/tahmid/codebench/internal/apperror"
	"github.com/tahmid/codebench/internal/model"
	"github.com/tahmid/codebench/internal/repository"
)

// compile-time check that *DB implements repository.SnippetRepository
var _ repository.SnippetRepository = (*DB)(nil)

// CreateSnippet inserts a new snippet, generating its ID and timestamps.
// xid IDs are URL-safe and sortable by creation time, which keeps the
// default listing order stable without extra bookkeeping.
func (db *DB) CreateSnippet(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	now := time.Now()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (id, user_id, name, language, code, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		nullableString(snippet.UserID),
		snippet.Name,
		snippet.Language,
		snippet.Code,
		snippet.CreatedAt,
		snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	return nil
}

// SnippetByID retrieves a single snippet.
func (db *DB) SnippetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var (
		snippet model.Snippet
		userID  sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, language, code, created_at, updated_at
		 FROM snippets
		 WHERE id = ?`,
		id,
	).Scan(
		&snippet.ID,
		&userID,
		&snippet.Name,
		&snippet.Language,
		&snippet.Code,
		&snippet.CreatedAt,
		&snippet.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	snippet.UserID = userID.String
	return &snippet, nil
}

// ListSnippets retrieves snippets newest-first. An empty userID lists all;
// a non-empty one restricts the listing to that owner.
func (db *DB) ListSnippets(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Snippet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, user_id, name, language, code, created_at, updated_at
		 FROM snippets`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		var (
			s     model.Snippet
			owner sql.NullString
		)
		if err := rows.Scan(
			&s.ID, &owner, &s.Name, &s.Language, &s.Code,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		s.UserID = owner.String
		snippets = append(snippets, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// UpdateSnippet modifies name, language, and code. RowsAffected distinguishes
// "updated" from "no such snippet" in a single round trip.
func (db *DB) UpdateSnippet(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET name = ?, language = ?, code = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Name,
		snippet.Language,
		snippet.Code,
		snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", snippet.ID)
	}

	return nil
}

// DeleteSnippet removes a snippet by ID.
func (db *DB) DeleteSnippet(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", id)
	}

	return nil
}

// nullableString maps "" to SQL NULL so anonymous snippets don't violate
// the users foreign key.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
