package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snipshare/internal/service"
)

// VoteHandler records up-votes. Anonymous visitors may vote; they are told
// apart by IP address.
type VoteHandler struct {
	votes  *service.VoteService
	logger *slog.Logger
}

func NewVoteHandler(votes *service.VoteService, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, logger: logger}
}

// HandleVote casts the caller's vote.
//
// HTTP: POST /api/snippets/{id}/vote → 201 {"snippetId", "voteCount", "voted"}
// A second vote from the same voter is 409.
func (h *VoteHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	res, err := h.votes.Vote(r.Context(), chi.URLParam(r, "id"), voterFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleRetract withdraws the caller's vote.
//
// HTTP: DELETE /api/snippets/{id}/vote → 200 {"snippetId", "voteCount", "voted"}
func (h *VoteHandler) HandleRetract(w http.ResponseWriter, r *http.Request) {
	res, err := h.votes.Retract(r.Context(), chi.URLParam(r, "id"), voterFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
