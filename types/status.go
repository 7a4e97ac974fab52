package types

import "time"

// Album status values. A user has at most one status row per album;
// the favorite flag is orthogonal to the listened state.
const (
	StatusWantToListen = "want-to-listen"
	StatusListened     = "listened"
)

// Status records a user's relationship to an album: whether they want to
// listen to it or have listened to it, and whether it is a favorite.
// Albums are referenced by their Spotify ID and are not persisted locally.
type Status struct {
	// ID is the unique identifier of the status row.
	ID int `json:"id" db:"id"`

	// UserID is the owner of this status.
	UserID int `json:"user_id" db:"user_id"`

	// SpotifyAlbumID is the external catalog identifier of the album.
	SpotifyAlbumID string `json:"spotify_album_id" db:"spotify_album_id"`

	// Value is one of StatusWantToListen or StatusListened.
	Value string `json:"status" db:"status"`

	// IsFavorite marks the album as a favorite, independent of Value.
	IsFavorite bool `json:"is_favorite" db:"is_favorite"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidStatus reports whether value is a recognized status value.
func ValidStatus(value string) bool {
	return value == StatusWantToListen || value == StatusListened
}
