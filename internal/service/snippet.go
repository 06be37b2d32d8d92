// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests inject
// in-memory fakes and the CLI can reuse the same rules without HTTP.
//
// Services return apperror values (ValidationFailed, Forbidden, ...). The
// handler package is the only place that knows which HTTP status each maps to.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository"
)

// Validation limits and pagination defaults.
const (
	MaxTitleLength       = 120
	MaxCodeLength        = 100000 // ~100KB of code
	MaxDescriptionLength = 2000
	MaxCategories        = 5
	MaxCategoryLength    = 32
	DefaultListLimit     = 20
	MaxListLimit         = 100
)

// SnippetInput is the client-editable part of a snippet, used for both
// create and (full-replace) update.
type SnippetInput struct {
	Title       string   `json:"title"       validate:"required,max=120"`
	Code        string   `json:"code"        validate:"required,max=100000"`
	Description string   `json:"description" validate:"max=2000"`
	Language    string   `json:"language"    validate:"required,language"`
	Categories  []string `json:"categories"  validate:"max=5,dive,required,max=32,category"`
	ImageURL    string   `json:"imageUrl"    validate:"omitempty,max=2048,url,httpurl"`
}

// normalize trims text, folds CRLF line endings, lowercases the language and
// tags, drops empty tags and removes duplicates (keeping first occurrence).
func (in SnippetInput) normalize() SnippetInput {
	in.Title = strings.TrimSpace(foldLineEndings(in.Title))
	in.Code = foldLineEndings(in.Code)
	if strings.TrimSpace(in.Code) == "" {
		in.Code = ""
	}
	in.Description = strings.TrimSpace(foldLineEndings(in.Description))
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	if in.Language == "" {
		in.Language = "text"
	}
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.Categories = normalizeCategories(in.Categories)
	return in
}

func normalizeCategories(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// SnippetService handles business logic for code snippets.
type SnippetService struct {
	repo   repository.SnippetRepository
	votes  repository.VoteRepository
	logger *slog.Logger
}

// NewSnippetService creates a new SnippetService.
func NewSnippetService(repo repository.SnippetRepository, votes repository.VoteRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		votes:  votes,
		logger: logger,
	}
}

// Create validates and saves a new snippet owned by actor.
func (s *SnippetService) Create(ctx context.Context, actor model.Actor, in SnippetInput) (*model.Snippet, error) {
	if !actor.Authenticated() {
		return nil, apperror.Unauthorized("log in to share a snippet")
	}

	in = in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		Title:       in.Title,
		Code:        in.Code,
		Description: in.Description,
		Language:    in.Language,
		Categories:  in.Categories,
		ImageURL:    in.ImageURL,
		AuthorID:    actor.UserID,
	}

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("authorID", snippet.AuthorID),
	)

	// Reload so the response carries the author login and vote count.
	return s.repo.GetByID(ctx, snippet.ID)
}

// Get returns a snippet. When viewer identifies someone, ViewerVoted says
// whether they already voted for it.
func (s *SnippetService) Get(ctx context.Context, id string, viewer model.Voter) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if key := viewer.Key(); key != "" {
		voted, err := s.votes.HasVoted(ctx, id, key)
		if err != nil {
			return nil, fmt.Errorf("checking viewer vote: %w", err)
		}
		snippet.ViewerVoted = voted
	}
	return snippet, nil
}

// List returns a page of snippets matching filter.
// limit is clamped to 1..MaxListLimit (default DefaultListLimit).
func (s *SnippetService) List(ctx context.Context, filter model.SnippetFilter, limit, offset int) ([]model.Snippet, error) {
	switch filter.Sort {
	case "":
		filter.Sort = model.SortNewest
	case model.SortNewest, model.SortTop:
	default:
		return nil, apperror.ValidationFailed("sort", "sort must be newest or top")
	}
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	filter.Query = strings.TrimSpace(filter.Query)

	snippets, err := s.repo.List(ctx, filter, repository.ListOptions{
		Limit:  clampLimit(limit, DefaultListLimit, MaxListLimit),
		Offset: max(offset, 0),
	})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

// Update replaces the editable fields of a snippet. Only its author or an
// admin may do so.
func (s *SnippetService) Update(ctx context.Context, actor model.Actor, id string, in SnippetInput) (*model.Snippet, error) {
	snippet, err := s.ownedSnippet(ctx, actor, id, "edit")
	if err != nil {
		return nil, err
	}

	in = in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	snippet.Title = in.Title
	snippet.Code = in.Code
	snippet.Description = in.Description
	snippet.Language = in.Language
	snippet.Categories = in.Categories
	snippet.ImageURL = in.ImageURL

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.String("actorID", actor.UserID),
	)
	return snippet, nil
}

// Delete removes a snippet with its votes, comments and tags. Only its
// author or an admin may do so.
func (s *SnippetService) Delete(ctx context.Context, actor model.Actor, id string) error {
	if _, err := s.ownedSnippet(ctx, actor, id, "delete"); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("snippet deleted",
		slog.String("id", id),
		slog.String("actorID", actor.UserID),
	)
	return nil
}

// Categories lists every tag in use with its snippet count.
func (s *SnippetService) Categories(ctx context.Context) ([]model.Category, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return cats, nil
}

// ownedSnippet loads id and checks actor may modify it. verb only feeds the
// error message.
func (s *SnippetService) ownedSnippet(ctx context.Context, actor model.Actor, id, verb string) (*model.Snippet, error) {
	if !actor.Authenticated() {
		return nil, apperror.Unauthorized("log in to " + verb + " snippets")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	snippet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanModify(snippet.AuthorID) {
		return nil, apperror.Forbidden(fmt.Sprintf("you can only %s your own snippets", verb))
	}
	return snippet, nil
}

func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}
