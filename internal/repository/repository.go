// Package repository declares the storage contracts the service layer
// depends on. The sqlite subpackage is the only production implementation;
// service tests use in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/snipshare/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, filter model.SnippetFilter, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	// Delete removes the snippet together with its votes, comments and
	// category tags.
	Delete(ctx context.Context, id string) error
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	AuthorStats(ctx context.Context, userID string) (*model.AuthorStats, error)
}

type VoteRepository interface {
	// Create returns an ErrConflict AppError when the voter already voted.
	Create(ctx context.Context, vote *model.Vote) error
	Delete(ctx context.Context, snippetID, voterKey string) error
	Count(ctx context.Context, snippetID string) (int, error)
	HasVoted(ctx context.Context, snippetID, voterKey string) (bool, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	ListBySnippet(ctx context.Context, snippetID string, opts ListOptions) ([]model.Comment, error)
	Delete(ctx context.Context, id string) error
}

type LeaderboardRepository interface {
	// TopSnippets ranks snippets created at or after since (zero = all time)
	// by vote count.
	TopSnippets(ctx context.Context, since time.Time, limit int) ([]model.SnippetRank, error)
	TopAuthors(ctx context.Context, metric model.AuthorMetric, limit int) ([]model.AuthorRank, error)
}
