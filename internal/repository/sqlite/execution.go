package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/tahmid/codebench/internal/model"
	"github.com/tahmid/codebench/internal/repository"
)

// compile-time check that *DB implements repository.ExecutionRepository
var _ repository.ExecutionRepository = (*DB)(nil)

// RecordExecution records one finished code run. Executions are append-only:
// there is no update or delete path.
func (db *DB) RecordExecution(ctx context.Context, execution *model.Execution) error {
	execution.ID = xid.New().String()
	execution.CreatedAt = time.Now()

	var exitCode any
	if execution.ExitCode != nil {
		exitCode = *execution.ExitCode
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO executions (id, user_id, language, succeeded, failure_kind, exit_code, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		execution.ID,
		nullableString(execution.UserID),
		execution.Language,
		execution.Succeeded,
		execution.FailureKind,
		exitCode,
		execution.DurationMS,
		execution.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording execution: %w", err)
	}

	return nil
}

// ListExecutionsByUser retrieves a user's execution history, newest-first.
func (db *DB) ListExecutionsByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Execution, error) {
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

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, language, succeeded, failure_kind, exit_code, duration_ms, created_at
		 FROM executions
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing executions: %w", err)
	}
	defer rows.Close()

	executions := make([]model.Execution, 0, limit)
	for rows.Next() {
		var (
			e        model.Execution
			owner    sql.NullString
			exitCode sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID, &owner, &e.Language, &e.Succeeded, &e.FailureKind,
			&exitCode, &e.DurationMS, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning execution row: %w", err)
		}
		e.UserID = owner.String
		if exitCode.Valid {
			code := int(exitCode.Int64)
			e.ExitCode = &code
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating executions: %w", err)
	}

	return executions, nil
}
