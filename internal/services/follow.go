package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/recordshelf/apiserver/internal/store"
	"github.com/recordshelf/apiserver/types"
)

// FollowRepository defines persistence operations for follow edges.
type FollowRepository interface {
	Create(ctx context.Context, followerID, followingID int) error
	Delete(ctx context.Context, followerID, followingID int) error
	Followers(ctx context.Context, userID int) ([]types.UserSummary, error)
	Following(ctx context.Context, userID int) ([]types.UserSummary, error)
	CountFollowers(ctx context.Context, userID int) (int, error)
}

// FollowService encapsulates follow-graph use-cases.
type FollowService struct {
	repo  FollowRepository
	users UserRepository
}

func NewFollowService(repo FollowRepository, users UserRepository) *FollowService {
	return &FollowService{repo: repo, users: users}
}

// Follow creates an edge from follower to target. Self-follows are rejected;
// following twice is a no-op.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID int) error {
	if followerID == targetID {
		return fieldError("user_id", "cannot follow yourself")
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("load target user: %w", err)
	}
	return s.repo.Create(ctx, followerID, targetID)
}

// Unfollow removes the edge from follower to target.
func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID int) error {
	return s.repo.Delete(ctx, followerID, targetID)
}

func (s *FollowService) Followers(ctx context.Context, userID int) ([]types.UserSummary, error) {
	return s.repo.Followers(ctx, userID)
}

func (s *FollowService) Following(ctx context.Context, userID int) ([]types.UserSummary, error) {
	return s.repo.Following(ctx, userID)
}

func (s *FollowService) CountFollowers(ctx context.Context, userID int) (int, error) {
	return s.repo.CountFollowers(ctx, userID)
}
