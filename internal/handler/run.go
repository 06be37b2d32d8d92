package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snipshare/internal/service"
)

// RunHandler runs a stored snippet in the code sandbox.
type RunHandler struct {
	runs   *service.RunService
	logger *slog.Logger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runs *service.RunService, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runs:   runs,
		logger: logger,
	}
}

// HandleRun executes the snippet's code and returns its output.
//
// HTTP: POST /api/snippets/{id}/run (RequireAuth)
// RESPONSE: {"stdout": "...", "stderr": "...", "exitCode": 0, "duration": 12345}
//
// 503 when the sandbox is off, 400 when the snippet's language can't run.
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.runs.Run(r.Context(), actorFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Debug("snippet run completed",
		slog.String("snippetID", id),
		slog.Int("exitCode", result.ExitCode),
	)
	writeJSON(w, http.StatusOK, result)
}
