// Package handler contains the HTTP request handlers of the snipshare API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path and query params, JSON body)
// 2. Call the service layer, passing the caller's identity from the context
// 3. Write the HTTP response (status code, JSON body) or a mapped error
//
// Handlers hold no business rules. Validation, permissions and
// normalisation all live in internal/service.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/service"
)

// SnippetHandler serves snippet CRUD and the category list.
//
// It only translates HTTP to service calls: decode the request, pick the
// actor out of the context, call the service, write the result or the error.
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// HandleList returns a page of snippets.
//
// HTTP: GET /api/snippets?category=&author=&q=&sort=newest|top&limit=&offset=
//
// author is a user ID. The response is always a JSON array, never null.
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	filter := model.SnippetFilter{
		Category: q.Get("category"),
		AuthorID: q.Get("author"),
		Query:    q.Get("q"),
		Sort:     model.SnippetSort(q.Get("sort")),
	}

	snippets, err := h.snippets.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if snippets == nil {
		snippets = []model.Snippet{}
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleCreate saves a new snippet owned by the caller.
//
// HTTP: POST /api/snippets (RequireAuth)
// REQUEST BODY: {"title": "...", "code": "...", "language": "go", "categories": ["cli"]}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Create(r.Context(), actorFrom(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleGet returns one snippet, with viewerVoted set for the caller.
//
// HTTP: GET /api/snippets/{id}
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.Get(r.Context(), chi.URLParam(r, "id"), voterFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleUpdate replaces a snippet's editable fields.
//
// HTTP: PUT /api/snippets/{id} (RequireAuth; owner or admin)
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Update(r.Context(), actorFrom(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet with its votes and comments.
//
// HTTP: DELETE /api/snippets/{id} (RequireAuth; owner or admin) → 204
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.snippets.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCategories lists every category with its snippet count.
//
// HTTP: GET /api/categories
func (h *SnippetHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.snippets.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}
