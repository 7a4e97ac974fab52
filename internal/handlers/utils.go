package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/recordshelf/apiserver/internal/services"
	"github.com/recordshelf/apiserver/internal/store"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

// Machine-readable auth error codes, surfaced so the client can show
// tailored messages and drive the refresh flow.
const (
	codeUnauthorized       = "unauthorized"
	codeInvalidCredentials = "invalid_credentials"
	codeEmailUnverified    = "email_unverified"
	codeTokenExpired       = "token_expired"
)

// ErrorResponse is the error envelope. Fields carries field-scoped
// validation messages; Code carries the auth error variant.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func userIDFromContext(ctx context.Context) (int, error) {
	value := ctx.Value(contextSubjectKey)
	switch subject := value.(type) {
	case int:
		if subject < 1 {
			return 0, errors.New("invalid subject")
		}
		return subject, nil
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(subject))
		if err != nil || parsed < 1 {
			return 0, errors.New("invalid subject")
		}
		return parsed, nil
	default:
		return 0, errors.New("missing subject")
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeAuthError(w http.ResponseWriter, message, code string) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: message, Code: code})
}

// writeServiceError maps service-layer errors onto the error taxonomy.
// fallback is the message for unexpected errors.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		status := http.StatusUnprocessableEntity
		if ve.Conflict {
			status = http.StatusConflict
		}
		writeJSON(w, status, ErrorResponse{Error: "validation failed", Fields: ve.Fields})
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeAuthError(w, "invalid username or password", codeInvalidCredentials)
	case errors.Is(err, services.ErrEmailUnverified):
		writeAuthError(w, "email address not verified", codeEmailUnverified)
	case errors.Is(err, services.ErrTokenExpired):
		writeAuthError(w, "token expired", codeTokenExpired)
	case errors.Is(err, services.ErrInvalidToken):
		writeAuthError(w, "unauthorized", codeUnauthorized)
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func parseIDParam(r *http.Request, param string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + param)
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// Healthz is a liveness probe.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
