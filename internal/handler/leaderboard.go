package handler

import (
	"net/http"

	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/service"
)

// LeaderboardHandler serves the snippet and author rankings.
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
}

func NewLeaderboardHandler(leaderboard *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// HandleSnippets ranks snippets by votes.
//
// HTTP: GET /api/leaderboard/snippets?period=all|week|month&limit=
func (h *LeaderboardHandler) HandleSnippets(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	ranks, err := h.leaderboard.TopSnippets(r.Context(), service.Period(r.URL.Query().Get("period")), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if ranks == nil {
		ranks = []model.SnippetRank{}
	}
	writeJSON(w, http.StatusOK, ranks)
}

// HandleAuthors ranks authors.
//
// HTTP: GET /api/leaderboard/authors?metric=votes|snippets&limit=
func (h *LeaderboardHandler) HandleAuthors(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	ranks, err := h.leaderboard.TopAuthors(r.Context(), model.AuthorMetric(r.URL.Query().Get("metric")), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if ranks == nil {
		ranks = []model.AuthorRank{}
	}
	writeJSON(w, http.StatusOK, ranks)
}
