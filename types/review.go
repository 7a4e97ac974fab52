package types

import "time"

// Review is a user's written take on an album with an optional star rating.
// At most one review exists per (user, album) pair.
type Review struct {
	ID int `json:"id" db:"id"`

	UserID int `json:"user_id" db:"user_id"`

	SpotifyAlbumID string `json:"spotify_album_id" db:"spotify_album_id"`

	// Rating is 1 to 5 in half-point increments; nil means "no rating".
	Rating *float64 `json:"rating" db:"rating"`

	Content string `json:"content" db:"content"`

	// User is the compact author shape, populated on listing endpoints.
	User *UserSummary `json:"user,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
