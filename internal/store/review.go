package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/recordshelf/apiserver/types"
)

// ReviewRepository handles persistence for reviews.
type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `id, user_id, spotify_album_id, rating, content, created_at, updated_at`

func scanReview(row interface{ Scan(...any) error }) (types.Review, error) {
	var review types.Review
	var rating sql.NullFloat64
	err := row.Scan(
		&review.ID,
		&review.UserID,
		&review.SpotifyAlbumID,
		&rating,
		&review.Content,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	if rating.Valid {
		review.Rating = &rating.Float64
	}
	return review, nil
}

func nullRating(rating *float64) sql.NullFloat64 {
	if rating == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *rating, Valid: true}
}

func (r *ReviewRepository) Get(ctx context.Context, id int) (types.Review, error) {
	const query = `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE id = $1`
	return scanReview(r.db.QueryRowContext(ctx, query, id))
}

// Upsert inserts a review for (user, album) or replaces the existing one.
// At most one review per pair, backed by the unique constraint.
func (r *ReviewRepository) Upsert(ctx context.Context, review types.Review) (types.Review, error) {
	now := time.Now()

	const query = `
		INSERT INTO reviews (user_id, spotify_album_id, rating, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, spotify_album_id) DO UPDATE
		SET rating = EXCLUDED.rating,
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + reviewColumns
	return scanReview(r.db.QueryRowContext(
		ctx,
		query,
		review.UserID,
		review.SpotifyAlbumID,
		nullRating(review.Rating),
		review.Content,
		now,
	))
}

func (r *ReviewRepository) Update(ctx context.Context, review types.Review) (types.Review, error) {
	review.UpdatedAt = time.Now()

	const query = `
		UPDATE reviews
		SET rating = $1,
			content = $2,
			updated_at = $3
		WHERE id = $4
		RETURNING ` + reviewColumns
	return scanReview(r.db.QueryRowContext(
		ctx,
		query,
		nullRating(review.Rating),
		review.Content,
		review.UpdatedAt,
		review.ID,
	))
}

func (r *ReviewRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM reviews WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForAlbum returns reviews for an album, newest first, with the compact
// author shape joined in.
func (r *ReviewRepository) ListForAlbum(ctx context.Context, albumID string) ([]types.Review, error) {
	const query = `
		SELECT r.id, r.user_id, r.spotify_album_id, r.rating, r.content, r.created_at, r.updated_at,
			u.id, u.username, COALESCE(u.profile_picture, '')
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.spotify_album_id = $1
		ORDER BY r.created_at DESC, r.id DESC`
	return r.listJoined(ctx, query, albumID)
}

// ListForUser returns a user's reviews, newest first.
func (r *ReviewRepository) ListForUser(ctx context.Context, userID int) ([]types.Review, error) {
	const query = `
		SELECT r.id, r.user_id, r.spotify_album_id, r.rating, r.content, r.created_at, r.updated_at,
			u.id, u.username, COALESCE(u.profile_picture, '')
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC, r.id DESC`
	return r.listJoined(ctx, query, userID)
}

func (r *ReviewRepository) listJoined(ctx context.Context, query string, arg any) ([]types.Review, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := make([]types.Review, 0)
	for rows.Next() {
		var review types.Review
		var rating sql.NullFloat64
		var author types.UserSummary
		if err := rows.Scan(
			&review.ID,
			&review.UserID,
			&review.SpotifyAlbumID,
			&rating,
			&review.Content,
			&review.CreatedAt,
			&review.UpdatedAt,
			&author.ID,
			&author.Username,
			&author.ProfilePicture,
		); err != nil {
			return nil, err
		}
		if rating.Valid {
			review.Rating = &rating.Float64
		}
		review.User = &author
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// AverageRating returns the arithmetic mean of non-null ratings for an album,
// or nil when no ratings exist.
func (r *ReviewRepository) AverageRating(ctx context.Context, albumID string) (*float64, error) {
	const query = `
		SELECT AVG(rating)
		FROM reviews
		WHERE spotify_album_id = $1 AND rating IS NOT NULL`
	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query, albumID).Scan(&avg); err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}
