package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tahmid/codebench/internal/apperror"
	"github.com/tahmid/codebench/internal/executor"
	"github.com/tahmid/codebench/internal/model"
	"github.com/tahmid/codebench/internal/repository"
)

// MaxSourceLength bounds the source accepted for a run. Matches the snippet
// code bound so anything saveable is runnable.
const MaxSourceLength = MaxCodeLength

// ExecutionService orchestrates code runs: validate the request, hand it to
// the executor backend, and record the outcome for the caller's history.
type ExecutionService struct {
	exec   executor.Executor
	repo   repository.ExecutionRepository
	logger *slog.Logger
}

// NewExecutionService creates an ExecutionService.
func NewExecutionService(exec executor.Executor, repo repository.ExecutionRepository, logger *slog.Logger) *ExecutionService {
	return &ExecutionService{
		exec:   exec,
		repo:   repo,
		logger: logger,
	}
}

// Run executes the given source and records the outcome.
//
// userID may be empty for anonymous runs; those are executed but not
// recorded, since history is per-user. Unsupported languages and empty
// source never reach the executor.
//
// Recording is best-effort: a history insert failure is logged, not
// returned, because the caller already has the result they asked for.
func (s *ExecutionService) Run(ctx context.Context, userID string, req executor.Request) (*executor.Result, error) {
	if req.Source == "" {
		return nil, apperror.ValidationFailed("source", "source must not be empty")
	}
	if len(req.Source) > MaxSourceLength {
		return nil, apperror.ValidationFailed("source",
			fmt.Sprintf("source must be %d bytes or less", MaxSourceLength))
	}

	req.CallerID = userID

	result, err := s.exec.Execute(ctx, req)
	if err != nil {
		// Only caller cancellation and executor-internal faults come back
		// as Go errors; everything about the guest program is in Result.
		return nil, err
	}

	s.logger.Info("execution finished",
		slog.String("language", string(req.Language)),
		slog.Bool("succeeded", result.Succeeded),
		slog.String("failureKind", string(result.FailureKind)),
		slog.Duration("duration", result.Duration),
	)

	if userID != "" {
		record := &model.Execution{
			UserID:      userID,
			Language:    string(req.Language),
			Succeeded:   result.Succeeded,
			FailureKind: string(result.FailureKind),
			ExitCode:    result.ExitCode,
			DurationMS:  result.Duration.Milliseconds(),
		}
		if err := s.repo.RecordExecution(ctx, record); err != nil {
			s.logger.Error("failed to record execution",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return result, nil
}

// History returns the caller's past runs, newest first.
func (s *ExecutionService) History(ctx context.Context, userID string, limit, offset int) ([]model.Execution, error) {
	if userID == "" {
		return []model.Execution{}, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	executions, err := s.repo.ListExecutionsByUser(ctx, userID, repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list executions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing executions: %w", err)
	}

	return executions, nil
}

// LanguageInfo describes one supported language for the /api/languages
// endpoint.
type LanguageInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Extension   string `json:"extension"`
	Available   bool   `json:"available"`
}

// Languages lists every language in the dispatch table with a host
// availability probe. Availability reflects the server host's PATH; the
// container backend ships all interpreters in its image, so there the
// probe is only advisory.
func (s *ExecutionService) Languages() []LanguageInfo {
	supported := executor.Supported()
	infos := make([]LanguageInfo, 0, len(supported))
	for _, lang := range supported {
		interp, _ := executor.Lookup(lang)
		infos = append(infos, LanguageInfo{
			Name:        string(lang),
			DisplayName: interp.DisplayName,
			Extension:   interp.Extension,
			Available:   interp.Available(),
		})
	}
	return infos
}
