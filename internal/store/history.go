package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HistoryRepository handles the append-only track history.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// Insert writes one history entry. The table carries a uniqueness guard on
// (party, track, end-reason), so when two actors race to end the same track
// the loser's write is dropped. Returns true if this call inserted the row.
func (r *HistoryRepository) Insert(ctx context.Context, entry *HistoryEntry) (bool, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	query := `
		INSERT INTO track_history (id, party_id, track_id, track_name, artist, downvotes, skipped, added_by, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (party_id, track_id, skipped) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.PartyID,
		entry.TrackID,
		entry.TrackName,
		entry.Artist,
		entry.Downvotes,
		entry.Skipped,
		entry.AddedBy,
	)
	if err != nil {
		return false, fmt.Errorf("inserting history entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListForParty retrieves a party's history, most recent first.
func (r *HistoryRepository) ListForParty(ctx context.Context, partyID string) ([]HistoryEntry, error) {
	query := `
		SELECT id, party_id, track_id, track_name, artist, downvotes, skipped, added_by, ended_at
		FROM track_history
		WHERE party_id = $1
		ORDER BY ended_at DESC
	`
	rows, err := r.pool.Query(ctx, query, partyID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.PartyID,
			&entry.TrackID,
			&entry.TrackName,
			&entry.Artist,
			&entry.Downvotes,
			&entry.Skipped,
			&entry.AddedBy,
			&entry.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats returns total and skipped track counts for a party.
func (r *HistoryRepository) Stats(ctx context.Context, partyID string) (*HistoryStats, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE skipped)
		FROM track_history
		WHERE party_id = $1
	`
	var stats HistoryStats
	if err := r.pool.QueryRow(ctx, query, partyID).Scan(&stats.TotalTracks, &stats.SkippedTracks); err != nil {
		return nil, fmt.Errorf("querying history stats: %w", err)
	}
	return &stats, nil
}

// Leaderboard aggregates history per contributor, ordered by tracks queued.
// Entries with no attribution are excluded.
func (r *HistoryRepository) Leaderboard(ctx context.Context, partyID string) ([]LeaderboardRow, error) {
	query := `
		SELECT added_by, COUNT(*), COUNT(*) FILTER (WHERE skipped), COALESCE(SUM(downvotes), 0)
		FROM track_history
		WHERE party_id = $1 AND added_by IS NOT NULL
		GROUP BY added_by
		ORDER BY COUNT(*) DESC, added_by
	`
	rows, err := r.pool.Query(ctx, query, partyID)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	var board []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.AddedBy, &row.TracksQueued, &row.TracksSkipped, &row.TotalDownvotes); err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		board = append(board, row)
	}
	return board, rows.Err()
}
