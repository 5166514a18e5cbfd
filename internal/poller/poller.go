// Package poller drives the background work: the periodic playback poll that
// feeds the coordinator, and the scheduled Spotify token refresh.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/justestif/go-party-skip/internal/playback"
)

// DefaultPollTimeout bounds a single playback poll. It must stay under the
// poll interval so cycles do not pile up.
const DefaultPollTimeout = 4 * time.Second

const refreshTimeout = 30 * time.Second

// Playback is the polled playback-service capability.
type Playback interface {
	CurrentlyPlaying(ctx context.Context) (*playback.TrackSnapshot, error)
}

// Sink consumes poll observations.
type Sink interface {
	HandlePoll(ctx context.Context, snapshot *playback.TrackSnapshot) error
}

// Refresher rotates the access token.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Config wires a Poller.
type Config struct {
	Playback  Playback
	Sink      Sink
	Refresher Refresher
	Logger    *zap.Logger

	PollInterval    time.Duration
	RefreshInterval time.Duration
	PollTimeout     time.Duration // defaults to DefaultPollTimeout
}

// Poller owns the cron runner carrying both background jobs. Individual cycle
// failures are logged and dropped; the schedule always continues.
type Poller struct {
	playback  Playback
	sink      Sink
	refresher Refresher
	logger    *zap.Logger

	cron            *cron.Cron
	pollInterval    time.Duration
	refreshInterval time.Duration
	pollTimeout     time.Duration
}

// New creates a Poller.
func New(cfg Config) *Poller {
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{
		playback:        cfg.Playback,
		sink:            cfg.Sink,
		refresher:       cfg.Refresher,
		logger:          cfg.Logger,
		cron:            cron.New(cron.WithLocation(time.UTC)),
		pollInterval:    cfg.PollInterval,
		refreshInterval: cfg.RefreshInterval,
		pollTimeout:     timeout,
	}
}

// Start registers both jobs and starts the cron runner.
func (p *Poller) Start() error {
	if _, err := p.cron.AddFunc(every(p.pollInterval), p.pollOnce); err != nil {
		return fmt.Errorf("scheduling playback poll: %w", err)
	}
	if _, err := p.cron.AddFunc(every(p.refreshInterval), p.refreshOnce); err != nil {
		return fmt.Errorf("scheduling token refresh: %w", err)
	}

	p.cron.Start()
	p.logger.Info("background jobs started",
		zap.Duration("poll_interval", p.pollInterval),
		zap.Duration("refresh_interval", p.refreshInterval),
	)
	return nil
}

// Stop halts the schedule and waits for any running job to finish.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
	p.logger.Info("background jobs stopped")
}

// Jobs returns the number of scheduled jobs. Used in tests.
func (p *Poller) Jobs() int {
	return len(p.cron.Entries())
}

// pollOnce runs one playback poll cycle. Any failure drops the cycle; the
// next scheduled cycle proceeds unaffected.
func (p *Poller) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.pollTimeout)
	defer cancel()

	snapshot, err := p.playback.CurrentlyPlaying(ctx)
	if err != nil {
		p.logger.Warn("playback poll failed", zap.Error(err))
		return
	}

	if err := p.sink.HandlePoll(ctx, snapshot); err != nil {
		p.logger.Warn("poll reconciliation failed", zap.Error(err))
	}
}

// refreshOnce rotates the access token once.
func (p *Poller) refreshOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := p.refresher.Refresh(ctx); err != nil {
		p.logger.Warn("token refresh failed", zap.Error(err))
		return
	}
	p.logger.Info("access token refreshed")
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
