package types

import "time"

// User represents an account in the system.
// It contains identity, verification state, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsVerified reports whether the user has confirmed their email address.
	// Unverified accounts cannot log in.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// ProfilePicture is the object storage URL of the user's avatar,
	// empty if none has been uploaded.
	ProfilePicture string `json:"profile_picture,omitempty" db:"profile_picture"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserSummary is the compact user shape embedded in follower/following
// listings and review payloads.
type UserSummary struct {
	ID             int    `json:"id" db:"id"`
	Username       string `json:"username" db:"username"`
	ProfilePicture string `json:"profile_picture,omitempty" db:"profile_picture"`
}
