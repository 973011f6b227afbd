package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tahmid/codebench/internal/auth"
	"github.com/tahmid/codebench/internal/executor"
	"github.com/tahmid/codebench/internal/service"
)

// ExecuteHandler handles code execution, the language listing, and the
// caller's execution history.
type ExecuteHandler struct {
	svc    *service.ExecutionService
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(svc *service.ExecutionService, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{svc: svc, logger: logger}
}

// HandleExecute runs a piece of source code and returns the outcome.
//
// HTTP: POST /api/execute
// Body: {"source": "...", "language": "python", "filename": "main.py"}
//
// The response is always 200 when the run itself happened — a guest
// program that crashes or times out is a successful execution of a failing
// program, reported inside the result body.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executor.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid JSON body",
		})
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())

	result, err := h.svc.Run(r.Context(), userID, req)
	if err != nil {
		// The client went away; nobody is listening for this response.
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("code execution failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleLanguages lists the supported languages with availability probes.
//
// HTTP: GET /api/languages
func (h *ExecuteHandler) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Languages())
}

// HandleHistory returns the caller's past runs, newest first.
//
// HTTP: GET /api/executions?limit=20&offset=0
// Auth: required
func (h *ExecuteHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "authentication required",
		})
		return
	}

	executions, err := h.svc.History(r.Context(), userID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, executions)
}
