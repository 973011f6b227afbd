// Package repository declares the storage interfaces the service layer
// depends on. The concrete SQLite implementation lives in the sqlite
// subpackage; services only ever see these interfaces, which is what lets
// tests inject in-memory fakes.
//
// All three interfaces are implemented by the same sqlite.DB value, so the
// method names are entity-qualified (CreateUser, CreateSnippet, ...) rather
// than overloaded per interface.
package repository

import (
	"context"

	"github.com/tahmid/codebench/internal/model"
)

// ListOptions carries pagination parameters for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository persists user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)
}

// SnippetRepository persists saved code snippets.
type SnippetRepository interface {
	CreateSnippet(ctx context.Context, snippet *model.Snippet) error
	SnippetByID(ctx context.Context, id string) (*model.Snippet, error)
	ListSnippets(ctx context.Context, userID string, opts ListOptions) ([]model.Snippet, error)
	UpdateSnippet(ctx context.Context, snippet *model.Snippet) error
	DeleteSnippet(ctx context.Context, id string) error
}

// ExecutionRepository persists the history of code runs.
type ExecutionRepository interface {
	RecordExecution(ctx context.Context, execution *model.Execution) error
	ListExecutionsByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Execution, error)
}
