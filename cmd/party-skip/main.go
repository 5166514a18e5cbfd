// Command party-skip runs the party vote-to-skip service: it mirrors Spotify
// playback into a shared store, accepts attendee votes, and skips tracks that
// collect enough downvotes.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/justestif/go-party-skip/internal/auth"
	"github.com/justestif/go-party-skip/internal/config"
	"github.com/justestif/go-party-skip/internal/coordinator"
	"github.com/justestif/go-party-skip/internal/playback"
	"github.com/justestif/go-party-skip/internal/poller"
	"github.com/justestif/go-party-skip/internal/store"
	"github.com/justestif/go-party-skip/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	sessionOpts := []auth.Option{}
	if cache, err := auth.DefaultTokenCache(); err != nil {
		logger.Warn("token cache unavailable, tokens will not persist across restarts", zap.Error(err))
	} else {
		sessionOpts = append(sessionOpts, auth.WithTokenCache(cache))
	}
	session := auth.NewSession(cfg.SpotifyID, cfg.SpotifySecret, cfg.SpotifyRefreshToken, logger, sessionOpts...)

	player := playback.New(session.Client(ctx))

	coord := coordinator.New(coordinator.Config{
		PartyID:       cfg.PartyID,
		SkipThreshold: cfg.SkipThreshold,
		Songs:         db.CurrentSongs(),
		Votes:         db.Votes(),
		History:       db.History(),
		Attributions:  db.Attributions(),
		Player:        player,
		Logger:        logger,
	})

	jobs := poller.New(poller.Config{
		Playback:        player,
		Sink:            coord,
		Refresher:       session,
		Logger:          logger,
		PollInterval:    cfg.PollInterval,
		RefreshInterval: cfg.RefreshInterval,
	})
	if err := jobs.Start(); err != nil {
		return fmt.Errorf("starting background jobs: %w", err)
	}
	defer jobs.Stop()

	handlers := web.NewHandlers(coord, db.History(), db.Attributions(), logger)
	server := web.NewServer(web.ServerConfig{
		Addr:     cfg.Addr,
		Handlers: handlers,
		Logger:   logger,
	})

	logger.Info("party-skip starting",
		zap.String("party_id", cfg.PartyID),
		zap.Int("skip_threshold", cfg.SkipThreshold),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	return server.Run()
}
