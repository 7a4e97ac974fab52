package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/recordshelf/apiserver/internal/services"
	"github.com/recordshelf/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body := `{"username":"listener","email":"listener@example.com","password":"correct-horse","confirm_password":"correct-horse"}`
	rec := env.do(t, http.MethodPost, "/register", "", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	var user types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "listener", user.Username)
	assert.False(t, user.IsVerified)
	// The password hash never leaves the server.
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegisterValidationEnvelope(t *testing.T) {
	env := newTestEnv(t)

	body := `{"username":"listener","email":"nope","password":"short","confirm_password":"other"}`
	rec := env.do(t, http.MethodPost, "/register", "", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Contains(t, envelope.Fields, "email")
	assert.Contains(t, envelope.Fields, "password")
	assert.Contains(t, envelope.Fields, "confirm_password")
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.seedVerifiedUser(t, "listener")

	form := url.Values{"username": {"listener"}, "password": {"correct-horse"}}
	rec := env.do(t, http.MethodPost, "/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string     `json:"access_token"`
		RefreshToken string     `json:"refresh_token"`
		User         types.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, user.ID, resp.User.ID)
}

func TestLoginErrorCodes(t *testing.T) {
	env := newTestEnv(t)
	env.seedVerifiedUser(t, "listener")

	// Unverified account gets its own error code.
	body := `{"username":"pending","email":"pending@example.com","password":"correct-horse","confirm_password":"correct-horse"}`
	rec := env.do(t, http.MethodPost, "/register", "", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name     string
		username string
		password string
		code     string
	}{
		{"wrong password", "listener", "wrong-password", "invalid_credentials"},
		{"unknown user", "nobody", "whatever-pass", "invalid_credentials"},
		{"unverified", "pending", "correct-horse", "email_unverified"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			form := url.Values{"username": {tc.username}, "password": {tc.password}}
			rec := env.do(t, http.MethodPost, "/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			var envelope ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, tc.code, envelope.Code)
		})
	}
}

func TestVerifyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body := `{"username":"pending","email":"pending@example.com","password":"correct-horse","confirm_password":"correct-horse"}`
	rec := env.do(t, http.MethodPost, "/register", "", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	var user types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))

	token, err := services.IssueToken(testSecret, user.ID, services.TokenTypeVerify, time.Hour)
	require.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/verify?token="+url.QueryEscape(token), "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())

	// Replay reports already verified, still a 200.
	rec = env.do(t, http.MethodGet, "/verify?token="+url.QueryEscape(token), "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"already_verified"}`, rec.Body.String())

	// Garbage tokens are invalid, not an error page.
	rec = env.do(t, http.MethodGet, "/verify?token=garbage", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"invalid"}`, rec.Body.String())
}

func TestMeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.seedVerifiedUser(t, "listener")

	rec := env.do(t, http.MethodGet, "/me", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var me types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, user.ID, me.ID)
}

func TestMeRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/me", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "unauthorized", envelope.Code)
}

func TestExpiredAccessTokenCode(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.seedVerifiedUser(t, "listener")

	expired, err := services.IssueToken(testSecret, user.ID, services.TokenTypeAccess, -time.Minute)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/me", expired, nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "token_expired", envelope.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.seedVerifiedUser(t, "listener")

	refresh, err := services.IssueToken(testSecret, user.ID, services.TokenTypeRefresh, time.Hour)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/refresh", "", strings.NewReader(`{"refresh_token":"`+refresh+`"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// The minted token works against a protected route.
	rec = env.do(t, http.MethodGet, "/me", resp.AccessToken, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedVerifiedUser(t, "listener")

	rec := env.do(t, http.MethodPost, "/refresh", "", strings.NewReader(`{"refresh_token":"`+token+`"}`), "application/json")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "unauthorized", envelope.Code)
}
