package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VoteRepository handles per-device vote rows.
type VoteRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a vote row. Returns ErrDuplicate if the device already
// voted on this track — the (party, track, device) tuple is unique.
func (r *VoteRepository) Create(ctx context.Context, vote *Vote) error {
	query := `
		INSERT INTO votes (party_id, track_id, device_id, direction, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		vote.PartyID,
		vote.TrackID,
		vote.DeviceID,
		vote.Direction,
	).Scan(&vote.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("inserting vote: %w", err)
	}
	return nil
}

// DeleteForTrack removes all vote rows for a (party, track) pair. Called when
// the track ends to scope votes to a single track's lifetime.
func (r *VoteRepository) DeleteForTrack(ctx context.Context, partyID, trackID string) error {
	query := `DELETE FROM votes WHERE party_id = $1 AND track_id = $2`
	if _, err := r.pool.Exec(ctx, query, partyID, trackID); err != nil {
		return fmt.Errorf("deleting votes for track: %w", err)
	}
	return nil
}
