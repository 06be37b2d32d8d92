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

// RecentSnippetsOnProfile is how many of an author's snippets a profile shows.
const RecentSnippetsOnProfile = 10

// ProfileInput holds the user-editable parts of a profile.
type ProfileInput struct {
	Bio       string `json:"bio"       validate:"max=500"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,max=2048,url,httpurl"`
}

// AuthorService serves public author profiles.
type AuthorService struct {
	users    repository.UserRepository
	snippets repository.SnippetRepository
	logger   *slog.Logger
}

func NewAuthorService(users repository.UserRepository, snippets repository.SnippetRepository, logger *slog.Logger) *AuthorService {
	return &AuthorService{
		users:    users,
		snippets: snippets,
		logger:   logger,
	}
}

// Profile returns the author with their activity counts and latest snippets.
func (s *AuthorService) Profile(ctx context.Context, login string) (*model.AuthorProfile, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, apperror.ValidationFailed("login", "login is required")
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	stats, err := s.users.AuthorStats(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading stats for %s: %w", user.Login, err)
	}

	snippets, err := s.snippets.List(ctx,
		model.SnippetFilter{AuthorID: user.ID, Sort: model.SortNewest},
		repository.ListOptions{Limit: RecentSnippetsOnProfile},
	)
	if err != nil {
		return nil, fmt.Errorf("loading snippets for %s: %w", user.Login, err)
	}

	return &model.AuthorProfile{
		User:         user,
		SnippetCount: stats.SnippetCount,
		VoteCount:    stats.VoteCount,
		CommentCount: stats.CommentCount,
		Snippets:     snippets,
	}, nil
}

// UpdateProfile changes the actor's own bio and avatar.
func (s *AuthorService) UpdateProfile(ctx context.Context, actor model.Actor, in ProfileInput) (*model.User, error) {
	if !actor.Authenticated() {
		return nil, apperror.Unauthorized("log in to edit your profile")
	}

	in.Bio = strings.TrimSpace(foldLineEndings(in.Bio))
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	user.Bio = in.Bio
	user.AvatarURL = in.AvatarURL

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("userID", user.ID))
	return user, nil
}
