package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/recordshelf/apiserver/internal/services"
	"github.com/recordshelf/apiserver/types"
	"go.uber.org/zap"
)

// AuthHandler exposes registration, login, token refresh, and email
// verification.
type AuthHandler struct {
	auth   *services.AuthService
	users  *services.UserService
	logger *zap.Logger
}

// AuthRouter registers the auth routes on the given router.
func AuthRouter(r chi.Router, auth *services.AuthService, users *services.UserService, secret []byte, logger *zap.Logger) {
	h := &AuthHandler{auth: auth, users: users, logger: logger}

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Get("/verify", h.Verify)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(secret))
		r.Get("/me", h.Me)
	})
}

// RequireAuth validates the bearer access token and injects the subject
// user id into the request context.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeAuthError(w, "missing or malformed authorization header", codeUnauthorized)
				return
			}

			userID, err := services.ParseToken(secret, token, services.TokenTypeAccess)
			if err != nil {
				writeServiceError(w, err, "could not validate token")
				return
			}

			ctx := context.WithValue(r.Context(), contextSubjectKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.auth.Register(r.Context(), input)
	if err != nil {
		writeServiceError(w, err, "could not register user")
		return
	}

	h.logger.Info("user registered", zap.Int("user_id", user.ID), zap.String("username", user.Username))
	writeJSON(w, http.StatusCreated, user)
}

type loginResponse struct {
	services.Tokens
	User types.User `json:"user"`
}

// Login accepts form-encoded credentials.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, tokens, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		writeServiceError(w, err, "could not log in")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Tokens: tokens, User: user})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	access, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err, "could not refresh token")
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access})
}

type verifyResponse struct {
	Status string `json:"status"`
}

// Verify resolves an emailed verification token. The outcome is reported in
// the body; replayed and expired links get a 200 so the frontend can render
// the state instead of an error page.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	status, err := h.auth.Verify(r.Context(), token)
	if err != nil {
		writeServiceError(w, err, "could not verify email")
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Status: status})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeAuthError(w, "unauthorized", codeUnauthorized)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "could not load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
