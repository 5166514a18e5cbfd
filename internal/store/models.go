package store

import (
	"time"

	"github.com/google/uuid"
)

// Vote directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// CurrentSong is the single live "now playing" row for a party.
type CurrentSong struct {
	PartyID   string
	TrackID   string
	TrackName string
	Artist    string
	Upvotes   int
	Downvotes int
	AddedBy   *string // nullable - who queued the track, when known
	UpdatedAt time.Time
}

// Vote records one device's vote on one track.
type Vote struct {
	PartyID   string
	TrackID   string
	DeviceID  string
	Direction string // "up" or "down"
	CreatedAt time.Time
}

// HistoryEntry is the append-only terminal record for a track that ended.
type HistoryEntry struct {
	ID        uuid.UUID
	PartyID   string
	TrackID   string
	TrackName string
	Artist    string
	Downvotes int
	Skipped   bool
	AddedBy   *string // nullable
	EndedAt   time.Time
}

// LeaderboardRow aggregates history per contributor.
type LeaderboardRow struct {
	AddedBy        string
	TracksQueued   int
	TracksSkipped  int
	TotalDownvotes int
}

// HistoryStats summarizes a party's track history.
type HistoryStats struct {
	TotalTracks   int
	SkippedTracks int
}
