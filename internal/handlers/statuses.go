package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/recordshelf/apiserver/internal/services"
	"go.uber.org/zap"
)

// StatusHandler exposes the album status shelf.
type StatusHandler struct {
	statuses *services.StatusService
	logger   *zap.Logger
}

// StatusRouter registers the status routes on the given router.
func StatusRouter(r chi.Router, statuses *services.StatusService, secret []byte, logger *zap.Logger) {
	h := &StatusHandler{statuses: statuses, logger: logger}

	r.Route("/statuses", func(r chi.Router) {
		r.Use(RequireAuth(secret))
		r.Get("/", h.List)
		r.Post("/", h.Set)
		r.Patch("/{statusID}", h.Update)
		r.Delete("/{statusID}", h.Delete)
	})

	r.Get("/albums/{albumID}/statuses", h.ListForAlbum)
	r.With(RequireAuth(secret)).Post("/albums/{albumID}/favorite", h.ToggleFavorite)
}

type setStatusRequest struct {
	SpotifyAlbumID string `json:"spotify_album_id"`
	Status         string `json:"status"`
	IsFavorite     bool   `json:"is_favorite"`
}

// List returns the caller's shelf.
func (h *StatusHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}

	statuses, err := h.statuses.ListForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "could not load statuses")
		return
	}

	writeJSON(w, http.StatusOK, statuses)
}

// Set upserts the caller's status for an album. Posting the same album twice
// updates the existing row instead of creating a second one.
func (h *StatusHandler) Set(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := h.statuses.Set(r.Context(), userID, req.SpotifyAlbumID, req.Status, req.IsFavorite)
	if err != nil {
		writeServiceError(w, err, "could not set status")
		return
	}

	writeJSON(w, http.StatusCreated, status)
}

func (h *StatusHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}
	statusID, err := parseIDParam(r, "statusID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch services.StatusPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := h.statuses.Update(r.Context(), userID, statusID, patch)
	if err != nil {
		writeServiceError(w, err, "could not update status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *StatusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}
	statusID, err := parseIDParam(r, "statusID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.statuses.Remove(r.Context(), userID, statusID); err != nil {
		writeServiceError(w, err, "could not delete status")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *StatusHandler) ListForAlbum(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "albumID")

	statuses, err := h.statuses.ListForAlbum(r.Context(), albumID)
	if err != nil {
		writeServiceError(w, err, "could not load statuses")
		return
	}

	writeJSON(w, http.StatusOK, statuses)
}

// ToggleFavorite flips the favorite flag for the caller and album, creating
// a want-to-listen row when none exists.
func (h *StatusHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}
	albumID := chi.URLParam(r, "albumID")

	status, err := h.statuses.ToggleFavorite(r.Context(), userID, albumID)
	if err != nil {
		writeServiceError(w, err, "could not toggle favorite")
		return
	}

	h.logger.Info("favorite toggled",
		zap.Int("user_id", userID),
		zap.String("album_id", albumID),
		zap.Bool("is_favorite", status.IsFavorite))
	writeJSON(w, http.StatusOK, status)
}
