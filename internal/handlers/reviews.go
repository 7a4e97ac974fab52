package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/recordshelf/apiserver/internal/services"
	"go.uber.org/zap"
)

// ReviewHandler exposes album reviews and rating aggregates.
type ReviewHandler struct {
	reviews *services.ReviewService
	logger  *zap.Logger
}

// ReviewRouter registers the review routes on the given router.
func ReviewRouter(r chi.Router, reviews *services.ReviewService, secret []byte, logger *zap.Logger) {
	h := &ReviewHandler{reviews: reviews, logger: logger}

	r.Route("/reviews", func(r chi.Router) {
		r.Get("/", h.List)
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(secret))
			r.Post("/", h.Create)
			r.Patch("/{reviewID}", h.Update)
			r.Delete("/{reviewID}", h.Delete)
		})
	})

	r.Get("/albums/{albumID}/reviews", h.ListForAlbum)
	r.Get("/albums/{albumID}/average-rating", h.AverageRating)
}

type createReviewRequest struct {
	SpotifyAlbumID string   `json:"spotify_album_id"`
	Content        string   `json:"content"`
	Rating         *float64 `json:"rating"`
}

// updateReviewRequest distinguishes an absent rating key from an explicit
// null so a rating can be cleared without touching the content.
type updateReviewRequest struct {
	Content *string          `json:"content"`
	Rating  *json.RawMessage `json:"rating"`
}

// List filters reviews by album or author via query parameters.
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	if albumID := r.URL.Query().Get("album_id"); albumID != "" {
		reviews, err := h.reviews.ListForAlbum(r.Context(), albumID)
		if err != nil {
			writeServiceError(w, err, "could not load reviews")
			return
		}
		writeJSON(w, http.StatusOK, reviews)
		return
	}

	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, err := strconv.Atoi(raw)
		if err != nil || userID < 1 {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		reviews, err := h.reviews.ListForUser(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err, "could not load reviews")
			return
		}
		writeJSON(w, http.StatusOK, reviews)
		return
	}

	writeError(w, http.StatusBadRequest, "album_id or user_id is required")
}

// Create upserts the caller's review for an album.
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	review, err := h.reviews.Create(r.Context(), userID, req.SpotifyAlbumID, req.Content, req.Rating)
	if err != nil {
		writeServiceError(w, err, "could not create review")
		return
	}

	h.logger.Info("review written", zap.Int("user_id", userID), zap.String("album_id", review.SpotifyAlbumID))
	writeJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}
	reviewID, err := parseIDParam(r, "reviewID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := services.ReviewPatch{Content: req.Content}
	if req.Rating != nil {
		patch.SetRating = true
		if string(*req.Rating) != "null" {
			var rating float64
			if err := json.Unmarshal(*req.Rating, &rating); err != nil {
				writeError(w, http.StatusBadRequest, "invalid rating")
				return
			}
			patch.Rating = &rating
		}
	}

	review, err := h.reviews.Update(r.Context(), userID, reviewID, patch)
	if err != nil {
		writeServiceError(w, err, "could not update review")
		return
	}

	writeJSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}
	reviewID, err := parseIDParam(r, "reviewID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.reviews.Remove(r.Context(), userID, reviewID); err != nil {
		writeServiceError(w, err, "could not delete review")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ReviewHandler) ListForAlbum(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "albumID")

	reviews, err := h.reviews.ListForAlbum(r.Context(), albumID)
	if err != nil {
		writeServiceError(w, err, "could not load reviews")
		return
	}

	writeJSON(w, http.StatusOK, reviews)
}

type averageRatingResponse struct {
	AverageRating *float64 `json:"average_rating"`
}

// AverageRating reports the mean of non-null ratings; null when the album
// has none.
func (h *ReviewHandler) AverageRating(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "albumID")

	avg, err := h.reviews.AverageRating(r.Context(), albumID)
	if err != nil {
		writeServiceError(w, err, "could not compute average rating")
		return
	}

	writeJSON(w, http.StatusOK, averageRatingResponse{AverageRating: avg})
}
