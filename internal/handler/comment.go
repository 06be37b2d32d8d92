package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/service"
)

// CommentHandler serves the discussion under a snippet.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// HandleList returns a snippet's comments, oldest first.
//
// HTTP: GET /api/snippets/{id}/comments?limit=&offset=
func (h *CommentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	comments, err := h.comments.List(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleCreate posts a comment. Logged-in users comment under their login;
// anonymous visitors may pass "authorName".
//
// HTTP: POST /api/snippets/{id}/comments
// REQUEST BODY: {"body": "...", "authorName": "guest"}
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.CommentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.comments.Add(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// HandleDelete removes a comment.
//
// HTTP: DELETE /api/comments/{id} (RequireAuth) → 204
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
