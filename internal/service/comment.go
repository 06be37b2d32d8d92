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

const (
	MaxCommentLength    = 5000
	MaxAuthorNameLength = 50
	AnonymousName       = "anonymous"
	DefaultCommentLimit = 50
	MaxCommentLimit     = 200
)

// CommentInput is what a client sends to comment on a snippet. AuthorName
// is only used for anonymous comments.
type CommentInput struct {
	Body       string `json:"body"       validate:"required,max=5000"`
	AuthorName string `json:"authorName" validate:"max=50"`
}

// CommentService manages the discussion under each snippet.
type CommentService struct {
	snippets repository.SnippetRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

func NewCommentService(
	snippets repository.SnippetRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		snippets: snippets,
		comments: comments,
		users:    users,
		logger:   logger,
	}
}

// Add posts a comment. Logged-in actors comment under their login;
// anonymous ones under the name they give, or "anonymous".
func (s *CommentService) Add(ctx context.Context, actor model.Actor, snippetID string, in CommentInput) (*model.Comment, error) {
	in.Body = strings.TrimSpace(foldLineEndings(in.Body))
	in.AuthorName = strings.TrimSpace(foldLineEndings(in.AuthorName))
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	snippetID, err := s.requireSnippet(ctx, snippetID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		SnippetID: snippetID,
		Body:      in.Body,
	}
	if actor.Authenticated() {
		user, err := s.users.GetUserByID(ctx, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("looking up comment author: %w", err)
		}
		comment.AuthorID = user.ID
		comment.AuthorName = user.Login
	} else {
		comment.AuthorName = in.AuthorName
		if comment.AuthorName == "" {
			comment.AuthorName = AnonymousName
		}
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.logger.Info("comment added",
		slog.String("id", comment.ID),
		slog.String("snippetID", snippetID),
	)
	return comment, nil
}

// List returns a snippet's comments, oldest first.
func (s *CommentService) List(ctx context.Context, snippetID string, limit, offset int) ([]model.Comment, error) {
	snippetID, err := s.requireSnippet(ctx, snippetID)
	if err != nil {
		return nil, err
	}

	comments, err := s.comments.ListBySnippet(ctx, snippetID, repository.ListOptions{
		Limit:  clampLimit(limit, DefaultCommentLimit, MaxCommentLimit),
		Offset: max(offset, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

// Delete removes a comment. Its author, the snippet's author and admins may
// delete it; anonymous comments can only go through the latter two.
func (s *CommentService) Delete(ctx context.Context, actor model.Actor, commentID string) error {
	if !actor.Authenticated() {
		return apperror.Unauthorized("log in to delete comments")
	}
	commentID = strings.TrimSpace(commentID)
	if commentID == "" {
		return apperror.ValidationFailed("id", "comment ID is required")
	}

	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}

	if !actor.CanModify(comment.AuthorID) {
		snippet, err := s.snippets.GetByID(ctx, comment.SnippetID)
		if err != nil {
			return err
		}
		if !actor.CanModify(snippet.AuthorID) {
			return apperror.Forbidden("you can only delete your own comments or comments on your snippets")
		}
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		return err
	}

	s.logger.Info("comment deleted",
		slog.String("id", commentID),
		slog.String("actorID", actor.UserID),
	)
	return nil
}

func (s *CommentService) requireSnippet(ctx context.Context, snippetID string) (string, error) {
	snippetID = strings.TrimSpace(snippetID)
	if snippetID == "" {
		return "", apperror.ValidationFailed("id", "snippet ID is required")
	}
	if _, err := s.snippets.GetByID(ctx, snippetID); err != nil {
		return "", err
	}
	return snippetID, nil
}
