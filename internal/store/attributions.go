package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttributionRepository records who queued a given track. Rows are written by
// companion queue clients and consulted when a new track is projected.
type AttributionRepository struct {
	pool *pgxpool.Pool
}

// Set records or updates the attribution for a (party, track) pair.
func (r *AttributionRepository) Set(ctx context.Context, partyID, trackID, addedBy string) error {
	query := `
		INSERT INTO queue_attributions (party_id, track_id, added_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (party_id, track_id) DO UPDATE SET added_by = EXCLUDED.added_by
	`
	if _, err := r.pool.Exec(ctx, query, partyID, trackID, addedBy); err != nil {
		return fmt.Errorf("setting attribution: %w", err)
	}
	return nil
}

// Get returns the attribution for a (party, track) pair, or ErrNotFound.
func (r *AttributionRepository) Get(ctx context.Context, partyID, trackID string) (string, error) {
	query := `SELECT added_by FROM queue_attributions WHERE party_id = $1 AND track_id = $2`
	var addedBy string
	err := r.pool.QueryRow(ctx, query, partyID, trackID).Scan(&addedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying attribution: %w", err)
	}
	return addedBy, nil
}
