package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/recordshelf/apiserver/types"
)

// StatusRepository handles persistence for album statuses.
type StatusRepository struct {
	db *sql.DB
}

func NewStatusRepository(db *sql.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

const statusColumns = `id, user_id, spotify_album_id, status, is_favorite, created_at, updated_at`

func scanStatus(row interface{ Scan(...any) error }) (types.Status, error) {
	var status types.Status
	err := row.Scan(
		&status.ID,
		&status.UserID,
		&status.SpotifyAlbumID,
		&status.Value,
		&status.IsFavorite,
		&status.CreatedAt,
		&status.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Status{}, ErrNotFound
		}
		return types.Status{}, err
	}
	return status, nil
}

func (r *StatusRepository) Get(ctx context.Context, id int) (types.Status, error) {
	const query = `
		SELECT ` + statusColumns + `
		FROM statuses
		WHERE id = $1`
	return scanStatus(r.db.QueryRowContext(ctx, query, id))
}

// Upsert inserts a status row for (user, album) or replaces the existing one.
// A single conditional write; the unique constraint is the only coordination.
func (r *StatusRepository) Upsert(ctx context.Context, status types.Status) (types.Status, error) {
	now := time.Now()

	const query = `
		INSERT INTO statuses (user_id, spotify_album_id, status, is_favorite, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, spotify_album_id) DO UPDATE
		SET status = EXCLUDED.status,
			is_favorite = EXCLUDED.is_favorite,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + statusColumns
	return scanStatus(r.db.QueryRowContext(
		ctx,
		query,
		status.UserID,
		status.SpotifyAlbumID,
		status.Value,
		status.IsFavorite,
		now,
	))
}

// ToggleFavorite flips the favorite flag for (user, album), creating a
// want-to-listen+favorite row when none exists. Favoriting implies at least
// a want-to-listen status.
func (r *StatusRepository) ToggleFavorite(ctx context.Context, userID int, albumID string) (types.Status, error) {
	now := time.Now()

	const query = `
		INSERT INTO statuses (user_id, spotify_album_id, status, is_favorite, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (user_id, spotify_album_id) DO UPDATE
		SET is_favorite = NOT statuses.is_favorite,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + statusColumns
	return scanStatus(r.db.QueryRowContext(ctx, query, userID, albumID, types.StatusWantToListen, now))
}

func (r *StatusRepository) Update(ctx context.Context, status types.Status) (types.Status, error) {
	status.UpdatedAt = time.Now()

	const query = `
		UPDATE statuses
		SET status = $1,
			is_favorite = $2,
			updated_at = $3
		WHERE id = $4
		RETURNING ` + statusColumns
	return scanStatus(r.db.QueryRowContext(
		ctx,
		query,
		status.Value,
		status.IsFavorite,
		status.UpdatedAt,
		status.ID,
	))
}

func (r *StatusRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM statuses WHERE id = $1`
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

func (r *StatusRepository) ListForUser(ctx context.Context, userID int) ([]types.Status, error) {
	const query = `
		SELECT ` + statusColumns + `
		FROM statuses
		WHERE user_id = $1
		ORDER BY updated_at DESC, id DESC`
	return r.list(ctx, query, userID)
}

func (r *StatusRepository) ListForAlbum(ctx context.Context, albumID string) ([]types.Status, error) {
	const query = `
		SELECT ` + statusColumns + `
		FROM statuses
		WHERE spotify_album_id = $1
		ORDER BY updated_at DESC, id DESC`
	return r.list(ctx, query, albumID)
}

func (r *StatusRepository) list(ctx context.Context, query string, arg any) ([]types.Status, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make([]types.Status, 0)
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}
