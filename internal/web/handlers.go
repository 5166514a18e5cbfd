package web

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/go-party-skip/internal/coordinator"
	"github.com/justestif/go-party-skip/internal/store"
)

// HistoryReader serves the analytics and leaderboard reports.
type HistoryReader interface {
	ListForParty(ctx context.Context, partyID string) ([]store.HistoryEntry, error)
	Stats(ctx context.Context, partyID string) (*store.HistoryStats, error)
	Leaderboard(ctx context.Context, partyID string) ([]store.LeaderboardRow, error)
}

// AttributionWriter records who queued a track.
type AttributionWriter interface {
	Set(ctx context.Context, partyID, trackID, addedBy string) error
}

// Handlers contains the HTTP handlers for the vote API.
type Handlers struct {
	coordinator  *coordinator.Coordinator
	history      HistoryReader
	attributions AttributionWriter
	logger       *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(c *coordinator.Coordinator, history HistoryReader, attributions AttributionWriter, logger *zap.Logger) *Handlers {
	return &Handlers{
		coordinator:  c,
		history:      history,
		attributions: attributions,
		logger:       logger,
	}
}

type currentSongResponse struct {
	TrackID   string    `json:"track_id"`
	TrackName string    `json:"track_name"`
	Artist    string    `json:"artist"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	AddedBy   *string   `json:"added_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type voteRequest struct {
	DeviceID string `json:"device_id"`
	Vote     string `json:"vote"`
}

type voteResponse struct {
	Downvotes       int  `json:"downvotes"`
	RemainingToSkip int  `json:"remaining_to_skip"`
	Skipped         bool `json:"skipped"`
}

type historyEntryResponse struct {
	TrackID   string    `json:"track_id"`
	TrackName string    `json:"track_name"`
	Artist    string    `json:"artist"`
	Downvotes int       `json:"downvotes"`
	Skipped   bool      `json:"skipped"`
	AddedBy   *string   `json:"added_by,omitempty"`
	EndedAt   time.Time `json:"ended_at"`
}

type analyticsResponse struct {
	TotalTracks     int                    `json:"total_tracks"`
	SkippedTracks   int                    `json:"skipped_tracks"`
	SkipRatePercent int                    `json:"skip_rate_percent"`
	History         []historyEntryResponse `json:"history"`
}

type leaderboardRowResponse struct {
	AddedBy        string `json:"added_by"`
	TracksQueued   int    `json:"tracks_queued"`
	TracksSkipped  int    `json:"tracks_skipped"`
	TotalDownvotes int    `json:"total_downvotes"`
}

type leaderboardResponse struct {
	Leaderboard []leaderboardRowResponse `json:"leaderboard"`
}

type attributionRequest struct {
	TrackID string `json:"track_id"`
	AddedBy string `json:"added_by"`
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Current handles GET /current. Returns an empty object when no track has
// been observed yet.
func (h *Handlers) Current(w http.ResponseWriter, r *http.Request) {
	song, err := h.coordinator.Current(r.Context())
	if err != nil {
		h.logger.Error("failed to load current song", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if song == nil {
		respondJSON(w, http.StatusOK, struct{}{})
		return
	}

	respondJSON(w, http.StatusOK, currentSongResponse{
		TrackID:   song.TrackID,
		TrackName: song.TrackName,
		Artist:    song.Artist,
		Upvotes:   song.Upvotes,
		Downvotes: song.Downvotes,
		AddedBy:   song.AddedBy,
		UpdatedAt: song.UpdatedAt,
	})
}

// Vote handles POST /vote.
func (h *Handlers) Vote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := h.coordinator.CastVote(r.Context(), req.DeviceID, req.Vote)
	switch {
	case errors.Is(err, coordinator.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, coordinator.ErrNoActiveTrack):
		respondError(w, http.StatusNotFound, "no track is currently active")
		return
	case errors.Is(err, coordinator.ErrAlreadyVoted):
		respondError(w, http.StatusConflict, "device already voted for this track")
		return
	case err != nil:
		h.logger.Error("failed to cast vote", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, voteResponse{
		Downvotes:       result.Downvotes,
		RemainingToSkip: result.RemainingToSkip,
		Skipped:         result.Skipped,
	})
}

// Analytics handles GET /analytics.
func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	partyID := h.coordinator.PartyID()

	stats, err := h.history.Stats(r.Context(), partyID)
	if err != nil {
		h.logger.Error("failed to load history stats", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	entries, err := h.history.ListForParty(r.Context(), partyID)
	if err != nil {
		h.logger.Error("failed to load history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := analyticsResponse{
		TotalTracks:   stats.TotalTracks,
		SkippedTracks: stats.SkippedTracks,
		History:       make([]historyEntryResponse, len(entries)),
	}
	if stats.TotalTracks > 0 {
		resp.SkipRatePercent = int(math.Round(float64(stats.SkippedTracks) / float64(stats.TotalTracks) * 100))
	}
	for i, entry := range entries {
		resp.History[i] = historyEntryResponse{
			TrackID:   entry.TrackID,
			TrackName: entry.TrackName,
			Artist:    entry.Artist,
			Downvotes: entry.Downvotes,
			Skipped:   entry.Skipped,
			AddedBy:   entry.AddedBy,
			EndedAt:   entry.EndedAt,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Leaderboard handles GET /leaderboard.
func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.history.Leaderboard(r.Context(), h.coordinator.PartyID())
	if err != nil {
		h.logger.Error("failed to load leaderboard", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := leaderboardResponse{Leaderboard: make([]leaderboardRowResponse, len(rows))}
	for i, row := range rows {
		resp.Leaderboard[i] = leaderboardRowResponse{
			AddedBy:        row.AddedBy,
			TracksQueued:   row.TracksQueued,
			TracksSkipped:  row.TracksSkipped,
			TotalDownvotes: row.TotalDownvotes,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Attribution handles POST /attribution. Companion queue clients call this
// when they queue a track so the leaderboard can credit the contributor.
func (h *Handlers) Attribution(w http.ResponseWriter, r *http.Request) {
	var req attributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.TrackID == "" || req.AddedBy == "" {
		respondError(w, http.StatusBadRequest, "track_id and added_by are required")
		return
	}

	if err := h.attributions.Set(r.Context(), h.coordinator.PartyID(), req.TrackID, req.AddedBy); err != nil {
		h.logger.Error("failed to set attribution", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
