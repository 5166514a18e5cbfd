package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CurrentSongRepository handles the per-party "now playing" row.
type CurrentSongRepository struct {
	pool *pgxpool.Pool
}

// Get retrieves the current song for a party.
func (r *CurrentSongRepository) Get(ctx context.Context, partyID string) (*CurrentSong, error) {
	query := `
		SELECT party_id, track_id, track_name, artist, upvotes, downvotes, added_by, updated_at
		FROM current_songs
		WHERE party_id = $1
	`
	var song CurrentSong
	err := r.pool.QueryRow(ctx, query, partyID).Scan(
		&song.PartyID,
		&song.TrackID,
		&song.TrackName,
		&song.Artist,
		&song.Upvotes,
		&song.Downvotes,
		&song.AddedBy,
		&song.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying current song: %w", err)
	}
	return &song, nil
}

// Replace upserts the party's current song row with fresh counters.
// There is at most one row per party; a prior row for the party is replaced.
func (r *CurrentSongRepository) Replace(ctx context.Context, song *CurrentSong) error {
	query := `
		INSERT INTO current_songs (party_id, track_id, track_name, artist, upvotes, downvotes, added_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (party_id) DO UPDATE SET
			track_id   = EXCLUDED.track_id,
			track_name = EXCLUDED.track_name,
			artist     = EXCLUDED.artist,
			upvotes    = EXCLUDED.upvotes,
			downvotes  = EXCLUDED.downvotes,
			added_by   = EXCLUDED.added_by,
			updated_at = NOW()
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		song.PartyID,
		song.TrackID,
		song.TrackName,
		song.Artist,
		song.Upvotes,
		song.Downvotes,
		song.AddedBy,
	).Scan(&song.UpdatedAt)
	if err != nil {
		return fmt.Errorf("replacing current song: %w", err)
	}
	return nil
}

// IncrementVote bumps one counter on the current song, scoped to the track
// the caller voted on so a concurrent transition cannot misattribute the vote.
// Returns the new (upvotes, downvotes) pair.
func (r *CurrentSongRepository) IncrementVote(ctx context.Context, partyID, trackID, direction string) (int, int, error) {
	column := "upvotes"
	if direction == DirectionDown {
		column = "downvotes"
	}
	query := fmt.Sprintf(`
		UPDATE current_songs
		SET %s = %s + 1, updated_at = NOW()
		WHERE party_id = $1 AND track_id = $2
		RETURNING upvotes, downvotes
	`, column, column)

	var up, down int
	err := r.pool.QueryRow(ctx, query, partyID, trackID).Scan(&up, &down)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("incrementing %s: %w", column, err)
	}
	return up, down, nil
}

// ResetCounters zeroes both counters for the party, leaving track identity
// untouched. The identity is corrected by the next poll-driven projection.
func (r *CurrentSongRepository) ResetCounters(ctx context.Context, partyID string) error {
	query := `
		UPDATE current_songs
		SET upvotes = 0, downvotes = 0, updated_at = NOW()
		WHERE party_id = $1
	`
	if _, err := r.pool.Exec(ctx, query, partyID); err != nil {
		return fmt.Errorf("resetting vote counters: %w", err)
	}
	return nil
}
