package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/executor"
	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository"
)

// RunService executes a stored snippet in the sandbox. A nil executor means
// the sandbox is switched off.
type RunService struct {
	snippets repository.SnippetRepository
	exec     executor.Executor
	logger   *slog.Logger
}

func NewRunService(snippets repository.SnippetRepository, exec executor.Executor, logger *slog.Logger) *RunService {
	return &RunService{
		snippets: snippets,
		exec:     exec,
		logger:   logger,
	}
}

// Enabled reports whether a sandbox is configured.
func (s *RunService) Enabled() bool {
	return s.exec != nil
}

// Run executes snippetID's code on behalf of actor.
func (s *RunService) Run(ctx context.Context, actor model.Actor, snippetID string) (*executor.Result, error) {
	if !actor.Authenticated() {
		return nil, apperror.Unauthorized("log in to run snippets")
	}
	if s.exec == nil {
		return nil, apperror.Unavailable("the code sandbox is not enabled on this server")
	}

	snippetID = strings.TrimSpace(snippetID)
	if snippetID == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	snippet, err := s.snippets.GetByID(ctx, snippetID)
	if err != nil {
		return nil, err
	}
	if !s.exec.Supports(snippet.Language) {
		return nil, apperror.ValidationFailed("language",
			fmt.Sprintf("%s snippets cannot be run in the sandbox", snippet.Language))
	}

	s.logger.Info("running snippet",
		slog.String("snippetID", snippet.ID),
		slog.String("language", snippet.Language),
		slog.String("actorID", actor.UserID),
	)

	result, err := s.exec.Execute(ctx, executor.Request{Language: snippet.Language, Code: snippet.Code})
	if err != nil {
		s.logger.Error("sandbox run failed",
			slog.String("snippetID", snippet.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("running snippet %s: %w", snippet.ID, err)
	}
	return result, nil
}
