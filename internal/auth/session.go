package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Session owns the process-wide Spotify token state. The long-lived refresh
// token is supplied at startup; the access token is rotated by a scheduled
// Refresh and lazily before first use. All replacement happens under the
// mutex, so there is exactly one writer.
type Session struct {
	conf   *oauth2.Config
	cache  *TokenCache
	logger *zap.Logger

	mu           sync.Mutex
	refreshToken string
	token        *oauth2.Token
}

// Option configures a Session.
type Option func(*Session)

// WithTokenCache enables persisting rotated tokens to disk.
func WithTokenCache(cache *TokenCache) Option {
	return func(s *Session) {
		s.cache = cache
	}
}

// WithTokenURL overrides the token endpoint. Used in tests.
func WithTokenURL(url string) Option {
	return func(s *Session) {
		s.conf.Endpoint.TokenURL = url
	}
}

// NewSession creates a Session from app credentials and a refresh token.
// A cached token from a previous run, when present and still carrying a
// refresh token, takes precedence over the supplied one since Spotify may
// rotate refresh tokens.
func NewSession(clientID, clientSecret, refreshToken string, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		logger:       logger,
		refreshToken: refreshToken,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cache != nil {
		if cached, err := s.cache.Load(); err != nil {
			logger.Warn("failed to load cached token", zap.Error(err))
		} else if cached != nil {
			s.token = cached
			if cached.RefreshToken != "" {
				s.refreshToken = cached.RefreshToken
			}
		}
	}

	return s
}

// Token returns the current access token, refreshing it first if it is
// missing or expired. Implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Valid() {
		return s.token, nil
	}
	return s.refreshLocked(context.Background())
}

// Refresh forces a token rotation regardless of the current token's expiry.
// Run on a fixed schedule so the access token never goes stale mid-party.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.refreshLocked(ctx)
	return err
}

// refreshLocked exchanges the refresh token for a new access token and
// replaces the stored state atomically. Caller must hold s.mu.
func (s *Session) refreshLocked(ctx context.Context) (*oauth2.Token, error) {
	src := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}

	if token.RefreshToken != "" {
		s.refreshToken = token.RefreshToken
	} else {
		token.RefreshToken = s.refreshToken
	}
	s.token = token

	if s.cache != nil {
		if err := s.cache.Save(token); err != nil {
			s.logger.Warn("failed to cache token", zap.Error(err))
		}
	}

	return token, nil
}

// Client returns a Spotify API client that draws tokens from this session.
func (s *Session) Client(ctx context.Context) *spotify.Client {
	return spotify.New(oauth2.NewClient(ctx, s), spotify.WithRetry(true))
}
