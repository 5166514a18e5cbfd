package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

func TestTokenCache_SaveAndLoad(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
	}{
		{
			name: "basic token",
			token: &oauth2.Token{
				AccessToken:  "test-access-token",
				TokenType:    "Bearer",
				RefreshToken: "test-refresh-token",
				Expiry:       time.Now().Add(time.Hour),
			},
		},
		{
			name: "token without refresh",
			token: &oauth2.Token{
				AccessToken: "access-only",
				TokenType:   "Bearer",
				Expiry:      time.Now().Add(30 * time.Minute),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "token.json")
			cache := NewTokenCache(path)

			if err := cache.Save(tt.token); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			loaded, err := cache.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if loaded == nil {
				t.Fatal("Load() returned nil token")
			}

			if loaded.AccessToken != tt.token.AccessToken {
				t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, tt.token.AccessToken)
			}

			if loaded.RefreshToken != tt.token.RefreshToken {
				t.Errorf("RefreshToken = %q, want %q", loaded.RefreshToken, tt.token.RefreshToken)
			}
		})
	}
}

func TestTokenCache_LoadNonExistent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent", "token.json")
	cache := NewTokenCache(path)

	token, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if token != nil {
		t.Errorf("Load() = %v, want nil for non-existent file", token)
	}
}

func TestTokenCache_SaveCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeply", "token.json")
	cache := NewTokenCache(path)

	token := &oauth2.Token{
		AccessToken: "test-token",
		TokenType:   "Bearer",
	}

	if err := cache.Save(token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Save() did not create token file")
	}
}

func TestTokenCache_SaveNilToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	cache := NewTokenCache(path)

	if err := cache.Save(nil); err == nil {
		t.Error("Save(nil) should return error")
	}
}

func TestTokenCache_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	cache := NewTokenCache(path)

	token := &oauth2.Token{
		AccessToken: "secret-token",
		TokenType:   "Bearer",
	}

	if err := cache.Save(token); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	// Tokens are credentials; no group/other access.
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		t.Errorf("File permissions = %o, want 0600 (no group/other access)", mode)
	}
}

// tokenServer returns an httptest server speaking the OAuth2 token endpoint
// protocol, counting how many refreshes it has served.
func tokenServer(t *testing.T, calls *atomic.Int64, rotatedRefresh string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing token request form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		n := calls.Add(1)

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"access_token": fmt.Sprintf("access-%d", n),
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if rotatedRefresh != "" {
			resp["refresh_token"] = rotatedRefresh
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encoding token response: %v", err)
		}
	}))
}

func TestSession_LazyRefreshBeforeFirstUse(t *testing.T) {
	var calls atomic.Int64
	server := tokenServer(t, &calls, "")
	defer server.Close()

	session := NewSession("id", "secret", "initial-refresh", zap.NewNop(), WithTokenURL(server.URL))

	token, err := session.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken == "" {
		t.Error("Token() returned empty access token")
	}
	if calls.Load() != 1 {
		t.Errorf("token endpoint calls = %d, want 1", calls.Load())
	}

	// A valid token is reused without another round-trip.
	if _, err := session.Token(); err != nil {
		t.Fatalf("Token() second call error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("token endpoint calls after reuse = %d, want 1", calls.Load())
	}
}

func TestSession_ForcedRefreshRotatesToken(t *testing.T) {
	var calls atomic.Int64
	server := tokenServer(t, &calls, "rotated-refresh")
	defer server.Close()

	dir := t.TempDir()
	cache := NewTokenCache(filepath.Join(dir, "token.json"))
	session := NewSession("id", "secret", "initial-refresh", zap.NewNop(),
		WithTokenURL(server.URL), WithTokenCache(cache))

	if err := session.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if err := session.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() second call error = %v", err)
	}

	// Forced refresh always hits the endpoint, even with a valid token.
	if calls.Load() != 2 {
		t.Errorf("token endpoint calls = %d, want 2", calls.Load())
	}

	// The rotated refresh token is persisted for the next process.
	cached, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cached == nil {
		t.Fatal("Refresh() did not persist token to cache")
	}
	if cached.RefreshToken != "rotated-refresh" {
		t.Errorf("cached RefreshToken = %q, want rotated-refresh", cached.RefreshToken)
	}
}

func TestSession_PrefersCachedToken(t *testing.T) {
	dir := t.TempDir()
	cache := NewTokenCache(filepath.Join(dir, "token.json"))
	if err := cache.Save(&oauth2.Token{
		AccessToken:  "cached-access",
		TokenType:    "Bearer",
		RefreshToken: "cached-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	session := NewSession("id", "secret", "env-refresh", zap.NewNop(), WithTokenCache(cache))

	// Cached token is still valid, so no endpoint call is needed at all.
	token, err := session.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken != "cached-access" {
		t.Errorf("AccessToken = %q, want cached-access", token.AccessToken)
	}
}
