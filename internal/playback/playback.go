// Package playback wraps the Spotify Web API player endpoints used by the
// poll cycle: what is playing right now, and skip to the next track.
package playback

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
)

// TrackSnapshot is one observation of the externally-playing track.
// Immutable per poll.
type TrackSnapshot struct {
	TrackID string
	Name    string
	Artist  string // Comma-separated artist names
}

// Client wraps the Spotify API client with the player operations the
// coordinator consumes.
type Client struct {
	api *spotify.Client
}

// New creates a new playback client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// CurrentlyPlaying returns a snapshot of the active track, or nil when
// nothing is playing (paused, stopped, or no active device).
func (c *Client) CurrentlyPlaying(ctx context.Context) (*TrackSnapshot, error) {
	playing, err := c.api.PlayerCurrentlyPlaying(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching currently playing: %w", err)
	}
	if playing == nil || !playing.Playing || playing.Item == nil {
		return nil, nil
	}
	return snapshotFromTrack(playing.Item), nil
}

// SkipToNext advances playback to the next track in the queue.
func (c *Client) SkipToNext(ctx context.Context) error {
	if err := c.api.Next(ctx); err != nil {
		return fmt.Errorf("skipping to next track: %w", err)
	}
	return nil
}

// snapshotFromTrack converts a Spotify FullTrack to a TrackSnapshot.
func snapshotFromTrack(track *spotify.FullTrack) *TrackSnapshot {
	artists := make([]string, len(track.Artists))
	for i, a := range track.Artists {
		artists[i] = a.Name
	}

	return &TrackSnapshot{
		TrackID: track.ID.String(),
		Name:    track.Name,
		Artist:  strings.Join(artists, ", "),
	}
}
