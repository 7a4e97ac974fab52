package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/recordshelf/apiserver/types"
)

// StatusRepository defines persistence operations for album statuses.
type StatusRepository interface {
	Get(ctx context.Context, id int) (types.Status, error)
	Upsert(ctx context.Context, status types.Status) (types.Status, error)
	ToggleFavorite(ctx context.Context, userID int, albumID string) (types.Status, error)
	Update(ctx context.Context, status types.Status) (types.Status, error)
	Delete(ctx context.Context, id int) error
	ListForUser(ctx context.Context, userID int) ([]types.Status, error)
	ListForAlbum(ctx context.Context, albumID string) ([]types.Status, error)
}

// StatusService encapsulates album status use-cases.
type StatusService struct {
	repo StatusRepository
}

func NewStatusService(repo StatusRepository) *StatusService {
	return &StatusService{repo: repo}
}

// Set upserts the status row for (user, album). Repeated identical calls
// leave exactly one row.
func (s *StatusService) Set(ctx context.Context, userID int, albumID, value string, isFavorite bool) (types.Status, error) {
	albumID = strings.TrimSpace(albumID)
	if albumID == "" {
		return types.Status{}, fieldError("spotify_album_id", "album id is required")
	}
	if !types.ValidStatus(value) {
		return types.Status{}, fieldError("status", "status must be want-to-listen or listened")
	}

	return s.repo.Upsert(ctx, types.Status{
		UserID:         userID,
		SpotifyAlbumID: albumID,
		Value:          value,
		IsFavorite:     isFavorite,
	})
}

// StatusPatch carries the optional fields of a partial status update.
type StatusPatch struct {
	Value      *string `json:"status"`
	IsFavorite *bool   `json:"is_favorite"`
}

// Update applies a partial update to a status row the caller owns.
func (s *StatusService) Update(ctx context.Context, userID, statusID int, patch StatusPatch) (types.Status, error) {
	status, err := s.repo.Get(ctx, statusID)
	if err != nil {
		return types.Status{}, err
	}
	if status.UserID != userID {
		return types.Status{}, ErrForbidden
	}

	if patch.Value != nil {
		if !types.ValidStatus(*patch.Value) {
			return types.Status{}, fieldError("status", "status must be want-to-listen or listened")
		}
		status.Value = *patch.Value
	}
	if patch.IsFavorite != nil {
		status.IsFavorite = *patch.IsFavorite
	}

	return s.repo.Update(ctx, status)
}

// Remove deletes a status row the caller owns.
func (s *StatusService) Remove(ctx context.Context, userID, statusID int) error {
	status, err := s.repo.Get(ctx, statusID)
	if err != nil {
		return err
	}
	if status.UserID != userID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, statusID)
}

// ToggleFavorite flips the favorite flag for (user, album). With no prior
// row it creates a want-to-listen favorite; otherwise the listened state is
// preserved and only the flag flips.
func (s *StatusService) ToggleFavorite(ctx context.Context, userID int, albumID string) (types.Status, error) {
	albumID = strings.TrimSpace(albumID)
	if albumID == "" {
		return types.Status{}, fieldError("spotify_album_id", "album id is required")
	}
	status, err := s.repo.ToggleFavorite(ctx, userID, albumID)
	if err != nil {
		return types.Status{}, fmt.Errorf("toggle favorite: %w", err)
	}
	return status, nil
}

func (s *StatusService) ListForUser(ctx context.Context, userID int) ([]types.Status, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *StatusService) ListForAlbum(ctx context.Context, albumID string) ([]types.Status, error) {
	return s.repo.ListForAlbum(ctx, albumID)
}
