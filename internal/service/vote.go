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

// VoteService records up-votes. Each voter (a user, or an IP address for
// anonymous visitors) gets at most one vote per snippet; the repository's
// unique index is what enforces it under concurrency.
type VoteService struct {
	snippets repository.SnippetRepository
	votes    repository.VoteRepository
	logger   *slog.Logger
}

func NewVoteService(snippets repository.SnippetRepository, votes repository.VoteRepository, logger *slog.Logger) *VoteService {
	return &VoteService{
		snippets: snippets,
		votes:    votes,
		logger:   logger,
	}
}

// Vote casts voter's vote for snippetID. A second vote by the same voter
// fails with a conflict.
func (s *VoteService) Vote(ctx context.Context, snippetID string, voter model.Voter) (*model.VoteResult, error) {
	snippetID, key, err := s.check(ctx, snippetID, voter)
	if err != nil {
		return nil, err
	}

	vote := &model.Vote{
		SnippetID: snippetID,
		UserID:    strings.TrimSpace(voter.UserID),
		VoterKey:  key,
	}
	if vote.UserID == "" {
		vote.VoterIP = strings.TrimSpace(voter.IP)
	}

	if err := s.votes.Create(ctx, vote); err != nil {
		return nil, err
	}

	s.logger.Info("vote cast",
		slog.String("snippetID", snippetID),
		slog.String("voter", key),
	)
	return s.result(ctx, snippetID, true)
}

// Retract removes voter's vote. It is a not-found error if they never voted.
func (s *VoteService) Retract(ctx context.Context, snippetID string, voter model.Voter) (*model.VoteResult, error) {
	snippetID, key, err := s.check(ctx, snippetID, voter)
	if err != nil {
		return nil, err
	}

	if err := s.votes.Delete(ctx, snippetID, key); err != nil {
		return nil, err
	}

	s.logger.Info("vote retracted",
		slog.String("snippetID", snippetID),
		slog.String("voter", key),
	)
	return s.result(ctx, snippetID, false)
}

func (s *VoteService) check(ctx context.Context, snippetID string, voter model.Voter) (string, string, error) {
	snippetID = strings.TrimSpace(snippetID)
	if snippetID == "" {
		return "", "", apperror.ValidationFailed("id", "snippet ID is required")
	}
	key := voter.Key()
	if key == "" {
		return "", "", apperror.ValidationFailed("voter", "cannot identify the voter")
	}
	if _, err := s.snippets.GetByID(ctx, snippetID); err != nil {
		return "", "", err
	}
	return snippetID, key, nil
}

func (s *VoteService) result(ctx context.Context, snippetID string, voted bool) (*model.VoteResult, error) {
	count, err := s.votes.Count(ctx, snippetID)
	if err != nil {
		return nil, fmt.Errorf("counting votes: %w", err)
	}
	return &model.VoteResult{
		SnippetID: snippetID,
		VoteCount: count,
		Voted:     voted,
	}, nil
}
