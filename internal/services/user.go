package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/recordshelf/apiserver/types"
)

// AvatarStore is the slice of object storage the user service needs.
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	ObjectURL(key string) string
}

// UserService encapsulates profile use-cases.
type UserService struct {
	repo    UserRepository
	avatars AvatarStore
}

func NewUserService(repo UserRepository, avatars AvatarStore) *UserService {
	return &UserService{repo: repo, avatars: avatars}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) Search(ctx context.Context, q string, limit int) ([]types.UserSummary, error) {
	return s.repo.Search(ctx, strings.TrimSpace(q), limit)
}

// SetProfilePicture uploads the avatar to object storage and records its URL
// on the user. Only the owner may replace their picture; the handler enforces
// that the target user is the authenticated one.
func (s *UserService) SetProfilePicture(ctx context.Context, userID int, filename string, r io.Reader, size int64, contentType string) (types.User, error) {
	if s.avatars == nil {
		return types.User{}, fmt.Errorf("avatar storage is not configured")
	}

	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
	default:
		return types.User{}, fieldError("file", "unsupported image type")
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}

	key := fmt.Sprintf("avatars/%d%s", userID, ext)
	if err := s.avatars.Put(ctx, key, r, size, contentType); err != nil {
		return types.User{}, fmt.Errorf("upload avatar: %w", err)
	}

	pictureURL := s.avatars.ObjectURL(key)
	if err := s.repo.SetProfilePicture(ctx, userID, pictureURL); err != nil {
		return types.User{}, fmt.Errorf("store avatar url: %w", err)
	}

	return s.repo.GetByID(ctx, userID)
}
