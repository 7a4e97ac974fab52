package types

import "time"

// Follow is a directed edge from one user to another.
// Self-follows are rejected; the (follower, following) pair is unique.
type Follow struct {
	ID          int       `json:"id" db:"id"`
	FollowerID  int       `json:"follower_id" db:"follower_id"`
	FollowingID int       `json:"following_id" db:"following_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
