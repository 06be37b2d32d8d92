package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snipshare/internal/service"
)

// AuthorHandler serves public profiles and profile editing.
type AuthorHandler struct {
	authors *service.AuthorService
}

func NewAuthorHandler(authors *service.AuthorService) *AuthorHandler {
	return &AuthorHandler{authors: authors}
}

// HandleProfile returns an author's profile.
//
// HTTP: GET /api/authors/{login}
func (h *AuthorHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.authors.Profile(r.Context(), chi.URLParam(r, "login"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdateProfile edits the caller's bio and avatar.
//
// HTTP: PUT /api/me/profile (RequireAuth)
// REQUEST BODY: {"bio": "...", "avatarUrl": "https://..."}
func (h *AuthorHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.authors.UpdateProfile(r.Context(), actorFrom(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
