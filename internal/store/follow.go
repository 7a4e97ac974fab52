package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/recordshelf/apiserver/types"
)

// FollowRepository handles persistence for follow edges.
type FollowRepository struct {
	db *sql.DB
}

func NewFollowRepository(db *sql.DB) *FollowRepository {
	return &FollowRepository{db: db}
}

// Create inserts a follow edge. Re-following is a no-op; the unique
// constraint on the ordered pair absorbs the duplicate.
func (r *FollowRepository) Create(ctx context.Context, followerID, followingID int) error {
	const query = `
		INSERT INTO follows (follower_id, following_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (follower_id, following_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, followerID, followingID, time.Now())
	return err
}

func (r *FollowRepository) Delete(ctx context.Context, followerID, followingID int) error {
	const query = `
		DELETE FROM follows
		WHERE follower_id = $1 AND following_id = $2`
	result, err := r.db.ExecContext(ctx, query, followerID, followingID)
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

// Followers returns the users following userID, ordered by username.
func (r *FollowRepository) Followers(ctx context.Context, userID int) ([]types.UserSummary, error) {
	const query = `
		SELECT u.id, u.username, COALESCE(u.profile_picture, '')
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.following_id = $1
		ORDER BY u.username`
	return r.listUsers(ctx, query, userID)
}

// Following returns the users userID follows, ordered by username.
func (r *FollowRepository) Following(ctx context.Context, userID int) ([]types.UserSummary, error) {
	const query = `
		SELECT u.id, u.username, COALESCE(u.profile_picture, '')
		FROM follows f
		JOIN users u ON u.id = f.following_id
		WHERE f.follower_id = $1
		ORDER BY u.username`
	return r.listUsers(ctx, query, userID)
}

// CountFollowers returns the number of followers userID has.
func (r *FollowRepository) CountFollowers(ctx context.Context, userID int) (int, error) {
	const query = `SELECT COUNT(1) FROM follows WHERE following_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FollowRepository) listUsers(ctx context.Context, query string, userID int) ([]types.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.UserSummary, 0)
	for rows.Next() {
		var user types.UserSummary
		if err := rows.Scan(&user.ID, &user.Username, &user.ProfilePicture); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
