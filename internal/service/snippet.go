package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tahmid/codebench/internal/apperror"
	"github.com/tahmid/codebench/internal/executor"
	"github.com/tahmid/codebench/internal/model"
	"github.com/tahmid/codebench/internal/repository"
)

// Snippet validation bounds.
const (
	MaxSnippetNameLength = 100
	MaxCodeLength        = 100000 // ~100KB of code
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// SnippetService handles business logic for saved code snippets.
type SnippetService struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
}

// NewSnippetService creates a new SnippetService.
func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		logger: logger,
	}
}

// Create validates and saves a new snippet. userID may be empty — anonymous
// snippets are allowed and simply have no owner.
func (s *SnippetService) Create(ctx context.Context, userID, name, language, code string) (*model.Snippet, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "snippet name is required")
	}
	if len(name) > MaxSnippetNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("snippet name must be %d characters or less", MaxSnippetNameLength))
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}

	language, err := normalizeLanguage(language)
	if err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		UserID:   userID,
		Name:     name,
		Language: language,
		Code:     code,
	}
	if err := s.repo.CreateSnippet(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
		slog.String("language", snippet.Language),
	)

	return snippet, nil
}

// ByID retrieves a snippet by its ID. Returns apperror.ErrNotFound if it
// doesn't exist.
func (s *SnippetService) ByID(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	return s.repo.SnippetByID(ctx, id)
}

// List retrieves snippets with pagination. A non-empty userID restricts the
// listing to that user's snippets.
func (s *SnippetService) List(ctx context.Context, userID string, limit, offset int) ([]model.Snippet, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	snippets, err := s.repo.ListSnippets(ctx, userID, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}

	return snippets, nil
}

// Update modifies an existing snippet. Fetch-then-update: confirm the
// snippet exists and the caller may touch it, apply the changes, save.
//
// Owned snippets can only be updated by their owner. Anonymous snippets
// have no owner and anyone may edit them.
func (s *SnippetService) Update(ctx context.Context, callerID, id, name, language, code string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.repo.SnippetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(snippet, callerID); err != nil {
		return nil, err
	}

	// Empty name means "don't change"; code is always replaced because an
	// empty body is a legitimate update.
	if name = strings.TrimSpace(name); name != "" {
		if len(name) > MaxSnippetNameLength {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("snippet name must be %d characters or less", MaxSnippetNameLength))
		}
		snippet.Name = name
	}
	if language != "" {
		language, err := normalizeLanguage(language)
		if err != nil {
			return nil, err
		}
		snippet.Language = language
	}
	if len(code) > MaxCodeLength {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	snippet.Code = code

	if err := s.repo.UpdateSnippet(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.String("name", snippet.Name),
	)

	return snippet, nil
}

// Delete removes a snippet, subject to the same ownership rule as Update.
func (s *SnippetService) Delete(ctx context.Context, callerID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.repo.SnippetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(snippet, callerID); err != nil {
		return err
	}

	if err := s.repo.DeleteSnippet(ctx, id); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}

func (s *SnippetService) authorize(snippet *model.Snippet, callerID string) error {
	if snippet.UserID != "" && snippet.UserID != callerID {
		return apperror.Forbidden("you do not own this snippet")
	}
	return nil
}

// normalizeLanguage lowercases and checks the language against the
// executor's dispatch table, so a snippet can't be saved with a language
// the runner would later refuse.
func normalizeLanguage(language string) (string, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return string(executor.LangPython), nil
	}
	if _, ok := executor.Lookup(executor.Language(language)); !ok {
		return "", apperror.ValidationFailed("language",
			fmt.Sprintf("unsupported language %q", language))
	}
	return language, nil
}
