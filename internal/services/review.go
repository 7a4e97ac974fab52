package services

import (
	"context"
	"math"
	"strings"

	"github.com/recordshelf/apiserver/types"
)

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	Get(ctx context.Context, id int) (types.Review, error)
	Upsert(ctx context.Context, review types.Review) (types.Review, error)
	Update(ctx context.Context, review types.Review) (types.Review, error)
	Delete(ctx context.Context, id int) error
	ListForAlbum(ctx context.Context, albumID string) ([]types.Review, error)
	ListForUser(ctx context.Context, userID int) ([]types.Review, error)
	AverageRating(ctx context.Context, albumID string) (*float64, error)
}

// ReviewService encapsulates review use-cases.
type ReviewService struct {
	repo ReviewRepository
}

func NewReviewService(repo ReviewRepository) *ReviewService {
	return &ReviewService{repo: repo}
}

// Create upserts the caller's review for an album. At most one review per
// (user, album); writing again replaces content and rating.
func (s *ReviewService) Create(ctx context.Context, userID int, albumID, content string, rating *float64) (types.Review, error) {
	albumID = strings.TrimSpace(albumID)
	if albumID == "" {
		return types.Review{}, fieldError("spotify_album_id", "album id is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return types.Review{}, fieldError("content", "content is required")
	}
	if ve := validateRating(rating); ve != nil {
		return types.Review{}, ve
	}

	return s.repo.Upsert(ctx, types.Review{
		UserID:         userID,
		SpotifyAlbumID: albumID,
		Rating:         rating,
		Content:        content,
	})
}

// ReviewPatch carries the optional fields of a partial review update.
// Rating uses a presence flag so "clear the rating" and "leave it alone"
// stay distinguishable.
type ReviewPatch struct {
	Content   *string
	Rating    *float64
	SetRating bool
}

// Update applies a partial update to a review the caller owns.
func (s *ReviewService) Update(ctx context.Context, userID, reviewID int, patch ReviewPatch) (types.Review, error) {
	review, err := s.repo.Get(ctx, reviewID)
	if err != nil {
		return types.Review{}, err
	}
	if review.UserID != userID {
		return types.Review{}, ErrForbidden
	}

	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if content == "" {
			return types.Review{}, fieldError("content", "content is required")
		}
		review.Content = content
	}
	if patch.SetRating {
		if ve := validateRating(patch.Rating); ve != nil {
			return types.Review{}, ve
		}
		review.Rating = patch.Rating
	}

	return s.repo.Update(ctx, review)
}

// Remove deletes a review the caller owns.
func (s *ReviewService) Remove(ctx context.Context, userID, reviewID int) error {
	review, err := s.repo.Get(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.UserID != userID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, reviewID)
}

func (s *ReviewService) ListForAlbum(ctx context.Context, albumID string) ([]types.Review, error) {
	return s.repo.ListForAlbum(ctx, albumID)
}

func (s *ReviewService) ListForUser(ctx context.Context, userID int) ([]types.Review, error) {
	return s.repo.ListForUser(ctx, userID)
}

// AverageRating returns the mean of non-null ratings, nil when none exist.
func (s *ReviewService) AverageRating(ctx context.Context, albumID string) (*float64, error) {
	return s.repo.AverageRating(ctx, albumID)
}

// validateRating accepts nil ("no rating") or 1-5 in half-point increments.
func validateRating(rating *float64) *ValidationError {
	if rating == nil {
		return nil
	}
	r := *rating
	if r < 1 || r > 5 || math.Mod(r*2, 1) != 0 {
		return fieldError("rating", "rating must be between 1 and 5 in half-point steps")
	}
	return nil
}
