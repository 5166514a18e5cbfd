// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for optional settings.
const (
	DefaultAddr            = "127.0.0.1:8080"
	DefaultPartyID         = "default"
	DefaultSkipThreshold   = 5
	DefaultPollInterval    = 5 * time.Second
	DefaultRefreshInterval = 50 * time.Minute
)

// ErrMissingCredentials is returned when required Spotify settings are not set.
var ErrMissingCredentials = errors.New("missing SPOTIFY_ID, SPOTIFY_SECRET or SPOTIFY_REFRESH_TOKEN environment variable")

// Config holds all runtime configuration for the service.
type Config struct {
	Addr        string
	DatabaseURL string

	SpotifyID           string
	SpotifySecret       string
	SpotifyRefreshToken string

	PartyID         string
	SkipThreshold   int
	PollInterval    time.Duration
	RefreshInterval time.Duration
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env file is fine; real deployments set variables directly.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Addr:                getenv("ADDR"),
		DatabaseURL:         getenv("DATABASE_URL"),
		SpotifyID:           getenv("SPOTIFY_ID"),
		SpotifySecret:       getenv("SPOTIFY_SECRET"),
		SpotifyRefreshToken: getenv("SPOTIFY_REFRESH_TOKEN"),
		PartyID:             getenv("PARTY_ID"),
	}

	if cfg.SpotifyID == "" || cfg.SpotifySecret == "" || cfg.SpotifyRefreshToken == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.PartyID == "" {
		cfg.PartyID = DefaultPartyID
	}

	threshold, err := intOrDefault(getenv("SKIP_THRESHOLD"), DefaultSkipThreshold)
	if err != nil {
		return nil, fmt.Errorf("parsing SKIP_THRESHOLD: %w", err)
	}
	if threshold < 1 {
		return nil, fmt.Errorf("SKIP_THRESHOLD must be at least 1, got %d", threshold)
	}
	cfg.SkipThreshold = threshold

	cfg.PollInterval, err = durationOrDefault(getenv("POLL_INTERVAL"), DefaultPollInterval)
	if err != nil {
		return nil, fmt.Errorf("parsing POLL_INTERVAL: %w", err)
	}

	cfg.RefreshInterval, err = durationOrDefault(getenv("TOKEN_REFRESH_INTERVAL"), DefaultRefreshInterval)
	if err != nil {
		return nil, fmt.Errorf("parsing TOKEN_REFRESH_INTERVAL: %w", err)
	}

	return cfg, nil
}

func intOrDefault(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func durationOrDefault(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}
