package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/recordshelf/apiserver/internal/services"
	"github.com/recordshelf/apiserver/types"
	"go.uber.org/zap"
)

// maxAvatarSize caps profile picture uploads at 8 MiB.
const maxAvatarSize = 8 << 20

const defaultUserSearchLimit = 20

// UserHandler exposes profile lookup, user search, the follow graph, and
// profile picture upload.
type UserHandler struct {
	users    *services.UserService
	follows  *services.FollowService
	statuses *services.StatusService
	reviews  *services.ReviewService
	logger   *zap.Logger
}

// UserRouter registers the user routes on the given router.
func UserRouter(r chi.Router, users *services.UserService, follows *services.FollowService, statuses *services.StatusService, reviews *services.ReviewService, secret []byte, logger *zap.Logger) {
	h := &UserHandler{users: users, follows: follows, statuses: statuses, reviews: reviews, logger: logger}

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.Search)
		r.Get("/by-username/{username}", h.GetByUsername)
		r.Get("/{userID}", h.GetByID)
		r.Get("/{userID}/followers", h.Followers)
		r.Get("/{userID}/following", h.Following)
		r.Get("/{userID}/reviews", h.Reviews)
		r.Get("/{userID}/statuses", h.Statuses)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(secret))
			r.Post("/{userID}/follow", h.Follow)
			r.Delete("/{userID}/follow", h.Unfollow)
			r.Post("/{userID}/profile-picture", h.UploadProfilePicture)
		})
	})
}

type userProfile struct {
	types.User
	FollowersCount int `json:"followers_count"`
}

func (h *UserHandler) writeProfile(w http.ResponseWriter, r *http.Request, user types.User) {
	count, err := h.follows.CountFollowers(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "could not load profile")
		return
	}
	writeJSON(w, http.StatusOK, userProfile{User: user, FollowersCount: count})
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := defaultUserSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	results, err := h.users.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, err, "could not search users")
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "could not load user")
		return
	}

	h.writeProfile(w, r, user)
}

func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		writeServiceError(w, err, "could not load user")
		return
	}

	h.writeProfile(w, r, user)
}

func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	followerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}
	targetID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.follows.Follow(r.Context(), followerID, targetID); err != nil {
		writeServiceError(w, err, "could not follow user")
		return
	}

	h.logger.Info("follow created", zap.Int("follower_id", followerID), zap.Int("target_id", targetID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	followerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}
	targetID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.follows.Unfollow(r.Context(), followerID, targetID); err != nil {
		writeServiceError(w, err, "could not unfollow user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	followers, err := h.follows.Followers(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "could not load followers")
		return
	}

	writeJSON(w, http.StatusOK, followers)
}

func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	following, err := h.follows.Following(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "could not load following")
		return
	}

	writeJSON(w, http.StatusOK, following)
}

func (h *UserHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, err := h.reviews.ListForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "could not load reviews")
		return
	}

	writeJSON(w, http.StatusOK, reviews)
}

func (h *UserHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	statuses, err := h.statuses.ListForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "could not load statuses")
		return
	}

	writeJSON(w, http.StatusOK, statuses)
}

// UploadProfilePicture replaces the caller's avatar. Users can only change
// their own picture.
func (h *UserHandler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	callerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}
	targetID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if callerID != targetID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarSize)
	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer func() { _ = file.Close() }()

	user, err := h.users.SetProfilePicture(r.Context(), callerID, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, err, "could not upload profile picture")
		return
	}

	h.logger.Info("profile picture updated", zap.Int("user_id", callerID))
	writeJSON(w, http.StatusOK, user)
}
