// Package coordinator implements the playback-to-vote state machine. It
// detects track transitions from the polled playback signal, enforces one
// vote per device per track, decides when downvotes warrant a skip, and
// archives every track that ends.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/justestif/go-party-skip/internal/playback"
	"github.com/justestif/go-party-skip/internal/store"
)

// Errors surfaced to the HTTP layer.
var (
	ErrInvalidInput  = errors.New("invalid vote input")
	ErrAlreadyVoted  = errors.New("device already voted for this track")
	ErrNoActiveTrack = errors.New("no active track")
)

// Player is the playback-service capability the coordinator issues commands to.
type Player interface {
	SkipToNext(ctx context.Context) error
}

// SongStore maintains the single "now playing" row per party.
type SongStore interface {
	Get(ctx context.Context, partyID string) (*store.CurrentSong, error)
	Replace(ctx context.Context, song *store.CurrentSong) error
	IncrementVote(ctx context.Context, partyID, trackID, direction string) (int, int, error)
	ResetCounters(ctx context.Context, partyID string) error
}

// VoteStore records per-device votes.
type VoteStore interface {
	Create(ctx context.Context, vote *store.Vote) error
	DeleteForTrack(ctx context.Context, partyID, trackID string) error
}

// HistoryStore archives tracks that ended.
type HistoryStore interface {
	Insert(ctx context.Context, entry *store.HistoryEntry) (bool, error)
}

// AttributionStore resolves who queued a track, when known.
type AttributionStore interface {
	Get(ctx context.Context, partyID, trackID string) (string, error)
}

// Config wires a Coordinator.
type Config struct {
	PartyID       string
	SkipThreshold int

	Songs        SongStore
	Votes        VoteStore
	History      HistoryStore
	Attributions AttributionStore
	Player       Player
	Logger       *zap.Logger
}

// Coordinator reconciles the poll signal and concurrent vote requests against
// the shared current-song record. The poll pipeline and vote requests are
// independent actors; every track-ending step is idempotent so either side
// can lose the race safely.
type Coordinator struct {
	partyID   string
	threshold int

	songs        SongStore
	votes        VoteStore
	history      HistoryStore
	attributions AttributionStore
	player       Player
	logger       *zap.Logger

	mu          sync.Mutex
	lastTrackID string
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		partyID:      cfg.PartyID,
		threshold:    cfg.SkipThreshold,
		songs:        cfg.Songs,
		votes:        cfg.Votes,
		history:      cfg.History,
		attributions: cfg.Attributions,
		player:       cfg.Player,
		logger:       cfg.Logger,
	}
}

// VoteResult is returned to the voter after a successful cast.
type VoteResult struct {
	Upvotes         int
	Downvotes       int
	RemainingToSkip int
	Skipped         bool
}

// CastVote applies one device's vote to the active track and runs the skip
// decision on the updated tallies.
func (c *Coordinator) CastVote(ctx context.Context, deviceID, direction string) (*VoteResult, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device_id is required", ErrInvalidInput)
	}
	if direction != store.DirectionUp && direction != store.DirectionDown {
		return nil, fmt.Errorf("%w: vote must be %q or %q", ErrInvalidInput, store.DirectionUp, store.DirectionDown)
	}

	song, err := c.songs.Get(ctx, c.partyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActiveTrack
	}
	if err != nil {
		return nil, fmt.Errorf("loading current song: %w", err)
	}

	vote := &store.Vote{
		PartyID:   c.partyID,
		TrackID:   song.TrackID,
		DeviceID:  deviceID,
		Direction: direction,
	}
	if err := c.votes.Create(ctx, vote); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyVoted
		}
		return nil, fmt.Errorf("recording vote: %w", err)
	}

	up, down, err := c.songs.IncrementVote(ctx, c.partyID, song.TrackID, direction)
	if errors.Is(err, store.ErrNotFound) {
		// The track transitioned between Get and the increment. The vote row
		// belongs to the outgoing track and is swept with it.
		return nil, ErrNoActiveTrack
	}
	if err != nil {
		return nil, fmt.Errorf("updating vote tally: %w", err)
	}

	result := &VoteResult{
		Upvotes:   up,
		Downvotes: down,
	}
	if remaining := c.threshold - down; remaining > 0 {
		result.RemainingToSkip = remaining
	}

	if direction == store.DirectionDown && down >= c.threshold {
		c.skip(ctx, song, up, down)
		result.Skipped = true
		result.RemainingToSkip = 0
	}

	return result, nil
}

// skip issues the external skip command and converges local state. A failed
// skip command is logged and does not abort the archive/clear/reset sequence:
// the vote state must still converge.
func (c *Coordinator) skip(ctx context.Context, song *store.CurrentSong, up, down int) {
	c.logger.Info("downvote threshold reached, skipping track",
		zap.String("party_id", c.partyID),
		zap.String("track_id", song.TrackID),
		zap.String("track_name", song.TrackName),
		zap.Int("downvotes", down),
	)

	if err := c.player.SkipToNext(ctx); err != nil {
		c.logger.Error("skip command failed", zap.String("track_id", song.TrackID), zap.Error(err))
	}

	song.Upvotes = up
	song.Downvotes = down
	c.endTrack(ctx, song, true)

	if err := c.songs.ResetCounters(ctx, c.partyID); err != nil {
		c.logger.Error("failed to reset vote counters", zap.String("party_id", c.partyID), zap.Error(err))
	}
}

// HandlePoll reconciles one poll observation against the last-seen track.
// A nil snapshot means playback is stopped or unavailable; that is no signal,
// not a transition.
func (c *Coordinator) HandlePoll(ctx context.Context, snapshot *playback.TrackSnapshot) error {
	if snapshot == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.lastTrackID {
	case snapshot.TrackID:
		return nil

	case "":
		// First observation since process start: no transition to archive.
		c.lastTrackID = snapshot.TrackID

		song, err := c.songs.Get(ctx, c.partyID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("loading current song: %w", err)
		}
		if song != nil && song.TrackID == snapshot.TrackID {
			// The store already shows this track; a restart mid-track must
			// not wipe votes already cast.
			return nil
		}
		return c.project(ctx, snapshot)

	default:
		prior := c.lastTrackID
		c.lastTrackID = snapshot.TrackID

		c.logger.Info("track transition detected",
			zap.String("party_id", c.partyID),
			zap.String("ending_track_id", prior),
			zap.String("new_track_id", snapshot.TrackID),
		)

		song, err := c.songs.Get(ctx, c.partyID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("loading current song: %w", err)
		}
		if song != nil && song.TrackID == prior {
			c.endTrack(ctx, song, false)
		}
		return c.project(ctx, snapshot)
	}
}

// endTrack archives the ending track and clears its vote ledger. Both the
// poll transition and the vote-driven skip call this; the history table's
// duplicate guard makes the loser of that race harmless, and the ledger
// delete is idempotent.
func (c *Coordinator) endTrack(ctx context.Context, song *store.CurrentSong, skipped bool) {
	entry := &store.HistoryEntry{
		PartyID:   song.PartyID,
		TrackID:   song.TrackID,
		TrackName: song.TrackName,
		Artist:    song.Artist,
		Downvotes: song.Downvotes,
		Skipped:   skipped,
		AddedBy:   song.AddedBy,
	}
	inserted, err := c.history.Insert(ctx, entry)
	if err != nil {
		c.logger.Error("failed to archive track", zap.String("track_id", song.TrackID), zap.Error(err))
	} else if !inserted {
		c.logger.Info("track already archived by concurrent path", zap.String("track_id", song.TrackID))
	}

	if err := c.votes.DeleteForTrack(ctx, song.PartyID, song.TrackID); err != nil {
		c.logger.Error("failed to clear vote ledger", zap.String("track_id", song.TrackID), zap.Error(err))
	}
}

// project replaces the party's current-song row with the incoming snapshot,
// counters at zero, attribution resolved when available.
func (c *Coordinator) project(ctx context.Context, snapshot *playback.TrackSnapshot) error {
	song := &store.CurrentSong{
		PartyID:   c.partyID,
		TrackID:   snapshot.TrackID,
		TrackName: snapshot.Name,
		Artist:    snapshot.Artist,
	}

	addedBy, err := c.attributions.Get(ctx, c.partyID, snapshot.TrackID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Warn("failed to resolve attribution", zap.String("track_id", snapshot.TrackID), zap.Error(err))
	} else if err == nil {
		song.AddedBy = &addedBy
	}

	if err := c.songs.Replace(ctx, song); err != nil {
		return fmt.Errorf("projecting current song: %w", err)
	}
	return nil
}

// Current returns the party's current-song projection, or nil when no track
// has been observed yet.
func (c *Coordinator) Current(ctx context.Context) (*store.CurrentSong, error) {
	song, err := c.songs.Get(ctx, c.partyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading current song: %w", err)
	}
	return song, nil
}

// PartyID returns the configured party identifier.
func (c *Coordinator) PartyID() string {
	return c.partyID
}

// SkipThreshold returns the configured downvote threshold.
func (c *Coordinator) SkipThreshold() int {
	return c.threshold
}
