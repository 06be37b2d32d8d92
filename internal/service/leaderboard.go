package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// Period is the time window of the snippet leaderboard.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// LeaderboardService ranks snippets and authors. Scores are always computed
// from the vote rows at query time, never cached.
type LeaderboardService struct {
	repo repository.LeaderboardRepository
	now  func() time.Time
}

func NewLeaderboardService(repo repository.LeaderboardRepository) *LeaderboardService {
	return &LeaderboardService{repo: repo, now: time.Now}
}

// TopSnippets ranks snippets created within period by vote count.
func (s *LeaderboardService) TopSnippets(ctx context.Context, period Period, limit int) ([]model.SnippetRank, error) {
	since, err := s.since(period)
	if err != nil {
		return nil, err
	}

	ranks, err := s.repo.TopSnippets(ctx, since, clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit))
	if err != nil {
		return nil, fmt.Errorf("ranking snippets: %w", err)
	}
	return ranks, nil
}

// TopAuthors ranks authors by votes received or by snippets shared.
func (s *LeaderboardService) TopAuthors(ctx context.Context, metric model.AuthorMetric, limit int) ([]model.AuthorRank, error) {
	switch model.AuthorMetric(strings.ToLower(string(metric))) {
	case "", model.MetricVotes:
		metric = model.MetricVotes
	case model.MetricSnippets:
		metric = model.MetricSnippets
	default:
		return nil, apperror.ValidationFailed("metric", "metric must be votes or snippets")
	}

	ranks, err := s.repo.TopAuthors(ctx, metric, clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit))
	if err != nil {
		return nil, fmt.Errorf("ranking authors: %w", err)
	}
	return ranks, nil
}

// since turns a period into the earliest creation time it includes. The
// zero time means no lower bound.
func (s *LeaderboardService) since(period Period) (time.Time, error) {
	switch Period(strings.ToLower(string(period))) {
	case "", PeriodAll:
		return time.Time{}, nil
	case PeriodWeek:
		return s.now().UTC().AddDate(0, 0, -7), nil
	case PeriodMonth:
		return s.now().UTC().AddDate(0, 0, -30), nil
	default:
		return time.Time{}, apperror.ValidationFailed("period", "period must be all, week or month")
	}
}
