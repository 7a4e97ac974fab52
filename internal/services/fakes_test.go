package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/recordshelf/apiserver/internal/store"
	"github.com/recordshelf/apiserver/types"
)

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int]types.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) MarkVerified(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.IsVerified = true
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) SetProfilePicture(_ context.Context, id int, pictureURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ProfilePicture = pictureURL
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) Search(_ context.Context, q string, limit int) ([]types.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]types.UserSummary, 0)
	for _, user := range f.users {
		if len(results) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(user.Username), strings.ToLower(q)) {
			results = append(results, types.UserSummary{ID: user.ID, Username: user.Username, ProfilePicture: user.ProfilePicture})
		}
	}
	return results, nil
}

// fakePublisher records published messages.
type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(map[string][][]byte)}
}

func (f *fakePublisher) Publish(_ context.Context, channel string, data []byte, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channel] = append(f.messages[channel], data)
	return fmt.Sprintf("msg-%d", len(f.messages[channel])), nil
}

func (f *fakePublisher) published(channel string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[channel]
}

// fakeStatusRepo is an in-memory StatusRepository with upsert semantics
// keyed on (user, album).
type fakeStatusRepo struct {
	mu       sync.Mutex
	nextID   int
	statuses map[int]types.Status
}

func newFakeStatusRepo() *fakeStatusRepo {
	return &fakeStatusRepo{nextID: 1, statuses: make(map[int]types.Status)}
}

func (f *fakeStatusRepo) find(userID int, albumID string) (types.Status, bool) {
	for _, status := range f.statuses {
		if status.UserID == userID && status.SpotifyAlbumID == albumID {
			return status, true
		}
	}
	return types.Status{}, false
}

func (f *fakeStatusRepo) Get(_ context.Context, id int) (types.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[id]
	if !ok {
		return types.Status{}, store.ErrNotFound
	}
	return status, nil
}

func (f *fakeStatusRepo) Upsert(_ context.Context, status types.Status) (types.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.find(status.UserID, status.SpotifyAlbumID); ok {
		existing.Value = status.Value
		existing.IsFavorite = status.IsFavorite
		f.statuses[existing.ID] = existing
		return existing, nil
	}
	status.ID = f.nextID
	f.nextID++
	f.statuses[status.ID] = status
	return status, nil
}

func (f *fakeStatusRepo) ToggleFavorite(_ context.Context, userID int, albumID string) (types.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.find(userID, albumID); ok {
		existing.IsFavorite = !existing.IsFavorite
		f.statuses[existing.ID] = existing
		return existing, nil
	}
	status := types.Status{
		ID:             f.nextID,
		UserID:         userID,
		SpotifyAlbumID: albumID,
		Value:          types.StatusWantToListen,
		IsFavorite:     true,
	}
	f.nextID++
	f.statuses[status.ID] = status
	return status, nil
}

func (f *fakeStatusRepo) Update(_ context.Context, status types.Status) (types.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.statuses[status.ID]; !ok {
		return types.Status{}, store.ErrNotFound
	}
	f.statuses[status.ID] = status
	return status, nil
}

func (f *fakeStatusRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.statuses[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.statuses, id)
	return nil
}

func (f *fakeStatusRepo) ListForUser(_ context.Context, userID int) ([]types.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]types.Status, 0)
	for _, status := range f.statuses {
		if status.UserID == userID {
			results = append(results, status)
		}
	}
	return results, nil
}

func (f *fakeStatusRepo) ListForAlbum(_ context.Context, albumID string) ([]types.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]types.Status, 0)
	for _, status := range f.statuses {
		if status.SpotifyAlbumID == albumID {
			results = append(results, status)
		}
	}
	return results, nil
}

// fakeReviewRepo is an in-memory ReviewRepository with upsert semantics
// keyed on (user, album).
type fakeReviewRepo struct {
	mu      sync.Mutex
	nextID  int
	reviews map[int]types.Review
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{nextID: 1, reviews: make(map[int]types.Review)}
}

func (f *fakeReviewRepo) Get(_ context.Context, id int) (types.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	review, ok := f.reviews[id]
	if !ok {
		return types.Review{}, store.ErrNotFound
	}
	return review, nil
}

func (f *fakeReviewRepo) Upsert(_ context.Context, review types.Review) (types.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.reviews {
		if existing.UserID == review.UserID && existing.SpotifyAlbumID == review.SpotifyAlbumID {
			existing.Content = review.Content
			existing.Rating = review.Rating
			f.reviews[existing.ID] = existing
			return existing, nil
		}
	}
	review.ID = f.nextID
	f.nextID++
	f.reviews[review.ID] = review
	return review, nil
}

func (f *fakeReviewRepo) Update(_ context.Context, review types.Review) (types.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reviews[review.ID]; !ok {
		return types.Review{}, store.ErrNotFound
	}
	f.reviews[review.ID] = review
	return review, nil
}

func (f *fakeReviewRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reviews[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.reviews, id)
	return nil
}

func (f *fakeReviewRepo) ListForAlbum(_ context.Context, albumID string) ([]types.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]types.Review, 0)
	for _, review := range f.reviews {
		if review.SpotifyAlbumID == albumID {
			results = append(results, review)
		}
	}
	return results, nil
}

func (f *fakeReviewRepo) ListForUser(_ context.Context, userID int) ([]types.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]types.Review, 0)
	for _, review := range f.reviews {
		if review.UserID == userID {
			results = append(results, review)
		}
	}
	return results, nil
}

func (f *fakeReviewRepo) AverageRating(_ context.Context, albumID string) (*float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum float64
	var count int
	for _, review := range f.reviews {
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

// fakeFollowRepo is an in-memory FollowRepository backed by a user repo
// for summaries.
type fakeFollowRepo struct {
	mu    sync.Mutex
	edges map[[2]int]bool
	users *fakeUserRepo
}

func newFakeFollowRepo(users *fakeUserRepo) *fakeFollowRepo {
	return &fakeFollowRepo{edges: make(map[[2]int]bool), users: users}
}

func (f *fakeFollowRepo) Create(_ context.Context, followerID, followingID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[[2]int{followerID, followingID}] = true
	return nil
}

func (f *fakeFollowRepo) Delete(_ context.Context, followerID, followingID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int{followerID, followingID}
	if !f.edges[key] {
		return store.ErrNotFound
	}
	delete(f.edges, key)
	return nil
}

func (f *fakeFollowRepo) summary(id int) types.UserSummary {
	user := f.users.users[id]
	return types.UserSummary{ID: user.ID, Username: user.Username, ProfilePicture: user.ProfilePicture}
}

func (f *fakeFollowRepo) Followers(_ context.Context, userID int) ([]types.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]types.UserSummary, 0)
	for edge := range f.edges {
		if edge[1] == userID {
			results = append(results, f.summary(edge[0]))
		}
	}
	return results, nil
}

func (f *fakeFollowRepo) Following(_ context.Context, userID int) ([]types.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]types.UserSummary, 0)
	for edge := range f.edges {
		if edge[0] == userID {
			results = append(results, f.summary(edge[1]))
		}
	}
	return results, nil
}

func (f *fakeFollowRepo) CountFollowers(_ context.Context, userID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for edge := range f.edges {
		if edge[1] == userID {
			count++
		}
	}
	return count, nil
}

// fakeAvatarStore captures uploads in memory.
type fakeAvatarStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeAvatarStore() *fakeAvatarStore {
	return &fakeAvatarStore{objects: make(map[string][]byte)}
}

func (f *fakeAvatarStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = buf.Bytes()
	return nil
}

func (f *fakeAvatarStore) ObjectURL(key string) string {
	return "https://storage.test/avatars-bucket/" + key
}
