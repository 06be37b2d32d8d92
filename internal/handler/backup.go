package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snipshare/internal/backup"
)

// BackupHandler exposes the backup archives to administrators.
// Every route sits behind RequireAuth + RequireAdmin.
type BackupHandler struct {
	backups *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(backups *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: backups, logger: logger}
}

type restoreResponse struct {
	Name   string         `json:"name"`
	Tables map[string]int `json:"tables"`
}

// HandleList returns the archives, newest first.
//
// HTTP: GET /api/admin/backups
func (h *BackupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	infos, err := h.backups.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if infos == nil {
		infos = []backup.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// HandleCreate dumps the database into a new archive.
//
// HTTP: POST /api/admin/backups → 201 {"name", "size", "createdAt"}
func (h *BackupHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	info, err := h.backups.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("backup created via API",
		slog.String("name", info.Name),
		slog.String("by", actorFrom(r).UserID),
	)
	writeJSON(w, http.StatusCreated, info)
}

// HandleDownload streams an archive.
//
// HTTP: GET /api/admin/backups/{name}
//
// http.ServeContent handles Range and If-Modified-Since for us.
func (h *BackupHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	f, info, err := h.backups.Open(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	http.ServeContent(w, r, info.Name, info.CreatedAt, f)
}

// HandleRestore replaces the whole database with an archive's contents.
//
// HTTP: POST /api/admin/backups/{name}/restore → 200 {"name", "tables"}
// A malformed archive is 400 and leaves the database untouched.
func (h *BackupHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	actor := actorFrom(r)

	counts, err := h.backups.Restore(r.Context(), name)
	if err != nil {
		h.logger.Warn("restore rejected",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	h.logger.Warn("database restored from backup",
		slog.String("name", name),
		slog.String("by", actor.UserID),
	)
	writeJSON(w, http.StatusOK, restoreResponse{Name: name, Tables: counts})
}

// HandleDelete removes an archive.
//
// HTTP: DELETE /api/admin/backups/{name} → 204
func (h *BackupHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.backups.Delete(chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
