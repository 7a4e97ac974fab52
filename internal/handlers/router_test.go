package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/recordshelf/apiserver/config"
	"github.com/recordshelf/apiserver/internal/services"
	"github.com/recordshelf/apiserver/internal/store"
	"github.com/recordshelf/apiserver/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("handler-test-secret")

// memRepo is a single in-memory store backing all repositories in tests.
type memRepo struct {
	nextID   int
	users    map[int]types.User
	statuses map[int]types.Status
	reviews  map[int]types.Review
	follows  map[[2]int]bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		nextID:   1,
		users:    make(map[int]types.User),
		statuses: make(map[int]types.Status),
		reviews:  make(map[int]types.Review),
		follows:  make(map[[2]int]bool),
	}
}

func (m *memRepo) id() int {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memRepo) Create(_ context.Context, user types.User) (types.User, error) {
	user.ID = m.id()
	m.users[user.ID] = user
	return user, nil
}

func (m *memRepo) MarkVerified(_ context.Context, id int) error {
	user := m.users[id]
	user.IsVerified = true
	m.users[id] = user
	return nil
}

func (m *memRepo) SetProfilePicture(_ context.Context, id int, pictureURL string) error {
	user := m.users[id]
	user.ProfilePicture = pictureURL
	m.users[id] = user
	return nil
}

func (m *memRepo) Search(_ context.Context, q string, limit int) ([]types.UserSummary, error) {
	results := make([]types.UserSummary, 0)
	for _, user := range m.users {
		if len(results) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(user.Username), strings.ToLower(q)) {
			results = append(results, types.UserSummary{ID: user.ID, Username: user.Username})
		}
	}
	return results, nil
}

func (m *memRepo) Get(_ context.Context, id int) (types.Status, error) {
	status, ok := m.statuses[id]
	if !ok {
		return types.Status{}, store.ErrNotFound
	}
	return status, nil
}

func (m *memRepo) Upsert(_ context.Context, status types.Status) (types.Status, error) {
	for _, existing := range m.statuses {
		if existing.UserID == status.UserID && existing.SpotifyAlbumID == status.SpotifyAlbumID {
			existing.Value = status.Value
			existing.IsFavorite = status.IsFavorite
			m.statuses[existing.ID] = existing
			return existing, nil
		}
	}
	status.ID = m.id()
	m.statuses[status.ID] = status
	return status, nil
}

func (m *memRepo) ToggleFavorite(_ context.Context, userID int, albumID string) (types.Status, error) {
	for _, existing := range m.statuses {
		if existing.UserID == userID && existing.SpotifyAlbumID == albumID {
			existing.IsFavorite = !existing.IsFavorite
			m.statuses[existing.ID] = existing
			return existing, nil
		}
	}
	status := types.Status{
		ID:             m.id(),
		UserID:         userID,
		SpotifyAlbumID: albumID,
		Value:          types.StatusWantToListen,
		IsFavorite:     true,
	}
	m.statuses[status.ID] = status
	return status, nil
}

func (m *memRepo) Update(_ context.Context, status types.Status) (types.Status, error) {
	m.statuses[status.ID] = status
	return status, nil
}

func (m *memRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.statuses[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.statuses, id)
	return nil
}

func (m *memRepo) ListForUser(_ context.Context, userID int) ([]types.Status, error) {
	results := make([]types.Status, 0)
	for _, status := range m.statuses {
		if status.UserID == userID {
			results = append(results, status)
		}
	}
	return results, nil
}

func (m *memRepo) ListForAlbum(_ context.Context, albumID string) ([]types.Status, error) {
	results := make([]types.Status, 0)
	for _, status := range m.statuses {
		if status.SpotifyAlbumID == albumID {
			results = append(results, status)
		}
	}
	return results, nil
}

// reviewRepo adapts memRepo to the review repository interface; method
// names collide with the status repository otherwise.
type reviewRepo struct{ m *memRepo }

func (r reviewRepo) Get(_ context.Context, id int) (types.Review, error) {
	review, ok := r.m.reviews[id]
	if !ok {
		return types.Review{}, store.ErrNotFound
	}
	return review, nil
}

func (r reviewRepo) Upsert(_ context.Context, review types.Review) (types.Review, error) {
	for _, existing := range r.m.reviews {
		if existing.UserID == review.UserID && existing.SpotifyAlbumID == review.SpotifyAlbumID {
			existing.Content = review.Content
			existing.Rating = review.Rating
			r.m.reviews[existing.ID] = existing
			return existing, nil
		}
	}
	review.ID = r.m.id()
	r.m.reviews[review.ID] = review
	return review, nil
}

func (r reviewRepo) Update(_ context.Context, review types.Review) (types.Review, error) {
	r.m.reviews[review.ID] = review
	return review, nil
}

func (r reviewRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.m.reviews[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.reviews, id)
	return nil
}

func (r reviewRepo) ListForAlbum(_ context.Context, albumID string) ([]types.Review, error) {
	results := make([]types.Review, 0)
	for _, review := range r.m.reviews {
		if review.SpotifyAlbumID == albumID {
			results = append(results, review)
		}
	}
	return results, nil
}

func (r reviewRepo) ListForUser(_ context.Context, userID int) ([]types.Review, error) {
	results := make([]types.Review, 0)
	for _, review := range r.m.reviews {
		if review.UserID == userID {
			results = append(results, review)
		}
	}
	return results, nil
}

func (r reviewRepo) AverageRating(_ context.Context, albumID string) (*float64, error) {
	var sum float64
	var count int
	for _, review := range r.m.reviews {
		if review.SpotifyAlbumID == albumID && review.Rating != nil {
			sum += *review.Rating
			count++
		}
	}
	if count == 0 {
		return nil, nil
	}
	avg := sum / float64(count)
	return &avg, nil
}

// followRepo adapts memRepo to the follow repository interface.
type followRepo struct{ m *memRepo }

func (f followRepo) Create(_ context.Context, followerID, followingID int) error {
	f.m.follows[[2]int{followerID, followingID}] = true
	return nil
}

func (f followRepo) Delete(_ context.Context, followerID, followingID int) error {
	key := [2]int{followerID, followingID}
	if !f.m.follows[key] {
		return store.ErrNotFound
	}
	delete(f.m.follows, key)
	return nil
}

func (f followRepo) Followers(_ context.Context, userID int) ([]types.UserSummary, error) {
	results := make([]types.UserSummary, 0)
	for edge := range f.m.follows {
		if edge[1] == userID {
			user := f.m.users[edge[0]]
			results = append(results, types.UserSummary{ID: user.ID, Username: user.Username})
		}
	}
	return results, nil
}

func (f followRepo) Following(_ context.Context, userID int) ([]types.UserSummary, error) {
	results := make([]types.UserSummary, 0)
	for edge := range f.m.follows {
		if edge[0] == userID {
			user := f.m.users[edge[1]]
			results = append(results, types.UserSummary{ID: user.ID, Username: user.Username})
		}
	}
	return results, nil
}

func (f followRepo) CountFollowers(_ context.Context, userID int) (int, error) {
	count := 0
	for edge := range f.m.follows {
		if edge[1] == userID {
			count++
		}
	}
	return count, nil
}

// fakeAvatars satisfies the avatar store for upload tests.
type fakeAvatars struct{ objects map[string][]byte }

func (f *fakeAvatars) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeAvatars) ObjectURL(key string) string {
	return "https://storage.test/avatars-bucket/" + key
}

type testEnv struct {
	router *chi.Mux
	repo   *memRepo
	auth   *services.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newMemRepo()
	logger := zap.NewNop()
	cfg := config.AuthConfig{
		JWTSecret:       string(testSecret),
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		VerifyTokenTTL:  24 * time.Hour,
	}

	authService := services.NewAuthService(repo, nil, cfg, "http://localhost:3000", logger)
	userService := services.NewUserService(repo, &fakeAvatars{objects: make(map[string][]byte)})
	statusService := services.NewStatusService(repo)
	reviewService := services.NewReviewService(reviewRepo{m: repo})
	followService := services.NewFollowService(followRepo{m: repo}, repo)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	AuthRouter(router, authService, userService, testSecret, logger)
	UserRouter(router, userService, followService, statusService, reviewService, testSecret, logger)
	StatusRouter(router, statusService, testSecret, logger)
	ReviewRouter(router, reviewService, testSecret, logger)

	return &testEnv{router: router, repo: repo, auth: authService}
}

// seedVerifiedUser creates a verified account and returns it with a valid
// access token.
func (e *testEnv) seedVerifiedUser(t *testing.T, username string) (types.User, string) {
	t.Helper()

	user, err := e.auth.Register(context.Background(), services.RegisterInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "correct-horse",
		ConfirmPassword: "correct-horse",
	})
	require.NoError(t, err)
	require.NoError(t, e.repo.MarkVerified(context.Background(), user.ID))

	token, err := services.IssueToken(testSecret, user.ID, services.TokenTypeAccess, time.Hour)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}
