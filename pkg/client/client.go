// Package client is a Go client for the Recordshelf API. It keeps the
// session's tokens and hydrated state, attaches the bearer token to
// authenticated calls, and transparently refreshes an expired access token
// exactly once per failed request.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/recordshelf/apiserver/types"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 30 * time.Second

// APIError carries the server's error envelope alongside the HTTP status.
type APIError struct {
	StatusCode int
	Message    string            `json:"error"`
	Code       string            `json:"code,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client talks to a Recordshelf API server on behalf of one session.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *types.User
	statuses     map[string]types.Status

	refreshGroup singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New constructs a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		statuses:   make(map[string]types.Status),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// User returns the logged-in user, nil before login.
func (c *Client) User() *types.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// StatusFor returns the session's cached status for an album, if any.
func (c *Client) StatusFor(albumID string) (types.Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.statuses[albumID]
	return status, ok
}

// Logout drops all session state.
func (c *Client) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.refreshToken = ""
	c.user = nil
	c.statuses = make(map[string]types.Status)
}

// Register creates an account. The account must be verified by email before
// it can log in.
func (c *Client) Register(ctx context.Context, username, email, password, confirmPassword string) (types.User, error) {
	body := map[string]string{
		"username":         username,
		"email":            email,
		"password":         password,
		"confirm_password": confirmPassword,
	}
	var user types.User
	if err := c.doJSON(ctx, http.MethodPost, "/register", body, false, &user); err != nil {
		return types.User{}, err
	}
	return user, nil
}

type loginResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         types.User `json:"user"`
}

// Login authenticates and hydrates the session.
func (c *Client) Login(ctx context.Context, username, password string) (types.User, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return types.User{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp loginResponse
	if err := c.send(req, &resp); err != nil {
		return types.User{}, err
	}

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.user = &resp.User
	c.mu.Unlock()

	if err := c.loadSession(ctx); err != nil {
		return resp.User, err
	}
	return resp.User, nil
}

// Hydrate seeds the session from a persisted token pair and loads the
// user's state, so a restarted process resumes without credentials.
func (c *Client) Hydrate(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" {
		return fmt.Errorf("access token is required")
	}

	c.mu.Lock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
	c.mu.Unlock()

	return c.loadSession(ctx)
}

// loadSession reloads the session's user and statuses from the server.
func (c *Client) loadSession(ctx context.Context) error {
	var user types.User
	if err := c.doJSON(ctx, http.MethodGet, "/me", nil, true, &user); err != nil {
		return err
	}

	var statuses []types.Status
	if err := c.doJSON(ctx, http.MethodGet, "/statuses", nil, true, &statuses); err != nil {
		return err
	}

	c.mu.Lock()
	c.user = &user
	c.statuses = make(map[string]types.Status, len(statuses))
	for _, status := range statuses {
		c.statuses[status.SpotifyAlbumID] = status
	}
	c.mu.Unlock()
	return nil
}

// SetStatus upserts the caller's status for an album and updates the cache.
func (c *Client) SetStatus(ctx context.Context, albumID, status string, isFavorite bool) (types.Status, error) {
	body := map[string]any{
		"spotify_album_id": albumID,
		"status":           status,
		"is_favorite":      isFavorite,
	}
	var result types.Status
	if err := c.doJSON(ctx, http.MethodPost, "/statuses", body, true, &result); err != nil {
		return types.Status{}, err
	}
	c.cacheStatus(result)
	return result, nil
}

// StatusPatch is a partial update for a status row. Nil fields are left
// unchanged.
type StatusPatch struct {
	Status     *string `json:"status,omitempty"`
	IsFavorite *bool   `json:"is_favorite,omitempty"`
}

// UpdateStatus applies a partial update to a status row and refreshes the
// cached entry.
func (c *Client) UpdateStatus(ctx context.Context, statusID int, patch StatusPatch) (types.Status, error) {
	var result types.Status
	if err := c.doJSON(ctx, http.MethodPatch, "/statuses/"+strconv.Itoa(statusID), patch, true, &result); err != nil {
		return types.Status{}, err
	}
	c.cacheStatus(result)
	return result, nil
}

// DeleteStatus removes a status row and evicts it from the cache. A row the
// server no longer has counts as removed, so the eviction still happens.
func (c *Client) DeleteStatus(ctx context.Context, statusID int) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/statuses/"+strconv.Itoa(statusID), nil, true, nil); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			return err
		}
	}
	c.mu.Lock()
	for albumID, status := range c.statuses {
		if status.ID == statusID {
			delete(c.statuses, albumID)
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// ToggleFavorite flips the favorite flag for an album.
func (c *Client) ToggleFavorite(ctx context.Context, albumID string) (types.Status, error) {
	var result types.Status
	if err := c.doJSON(ctx, http.MethodPost, "/albums/"+url.PathEscape(albumID)+"/favorite", nil, true, &result); err != nil {
		return types.Status{}, err
	}
	c.cacheStatus(result)
	return result, nil
}

// CreateReview writes the caller's review for an album.
func (c *Client) CreateReview(ctx context.Context, albumID, content string, rating *float64) (types.Review, error) {
	body := map[string]any{
		"spotify_album_id": albumID,
		"content":          content,
		"rating":           rating,
	}
	var review types.Review
	if err := c.doJSON(ctx, http.MethodPost, "/reviews", body, true, &review); err != nil {
		return types.Review{}, err
	}
	return review, nil
}

// AlbumReviews lists reviews for an album.
func (c *Client) AlbumReviews(ctx context.Context, albumID string) ([]types.Review, error) {
	var reviews []types.Review
	if err := c.doJSON(ctx, http.MethodGet, "/albums/"+url.PathEscape(albumID)+"/reviews", nil, false, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Follow follows another user.
func (c *Client) Follow(ctx context.Context, userID int) error {
	return c.doJSON(ctx, http.MethodPost, "/users/"+strconv.Itoa(userID)+"/follow", nil, true, nil)
}

// Unfollow unfollows another user.
func (c *Client) Unfollow(ctx context.Context, userID int) error {
	return c.doJSON(ctx, http.MethodDelete, "/users/"+strconv.Itoa(userID)+"/follow", nil, true, nil)
}

// SearchAlbums queries the catalog proxy.
func (c *Client) SearchAlbums(ctx context.Context, query string) ([]types.Album, error) {
	var resp struct {
		Albums []types.Album `json:"albums"`
	}
	path := "/spotify/search?q=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, false, &resp); err != nil {
		return nil, err
	}
	return resp.Albums, nil
}

// GetAlbum fetches album detail from the catalog proxy.
func (c *Client) GetAlbum(ctx context.Context, albumID string) (types.AlbumDetail, error) {
	var detail types.AlbumDetail
	if err := c.doJSON(ctx, http.MethodGet, "/spotify/albums/"+url.PathEscape(albumID), nil, false, &detail); err != nil {
		return types.AlbumDetail{}, err
	}
	return detail, nil
}

// UploadProfilePicture replaces the logged-in user's avatar.
func (c *Client) UploadProfilePicture(ctx context.Context, filename string, r io.Reader) (types.User, error) {
	c.mu.RLock()
	user := c.user
	c.mu.RUnlock()
	if user == nil {
		return types.User{}, fmt.Errorf("not logged in")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return types.User{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return types.User{}, err
	}
	if err := writer.Close(); err != nil {
		return types.User{}, err
	}

	path := "/users/" + strconv.Itoa(user.ID) + "/profile-picture"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return types.User{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var updated types.User
	if err := c.sendAuthed(req, buf.Bytes(), &updated); err != nil {
		return types.User{}, err
	}

	c.mu.Lock()
	c.user = &updated
	c.mu.Unlock()
	return updated, nil
}

func (c *Client) cacheStatus(status types.Status) {
	c.mu.Lock()
	c.statuses[status.SpotifyAlbumID] = status
	c.mu.Unlock()
}
