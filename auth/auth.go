// Package auth models the external auth service as a small capability:
// verify a bearer token, get back the user it belongs to. Session
// management itself lives in that service; this process only checks
// tokens on the way in.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
)

// User is the authenticated identity attached to a request.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	// Credits is the user's remaining analysis balance, reported by
	// the auth service and displayed by the UI.
	Credits int `json:"credits,omitempty"`
}

// Authenticator verifies bearer tokens.
type Authenticator interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// HTTPAuthenticator verifies tokens against the auth service's
// /auth/me endpoint, with a short-TTL verification cache so every
// API call does not cost an extra round trip.
type HTTPAuthenticator struct {
	baseURL    string
	httpClient *http.Client
	ttl        time.Duration

	mu    sync.Mutex
	cache map[string]cachedUser
}

type cachedUser struct {
	user      *User
	expiresAt time.Time
}

// NewHTTPAuthenticator creates an authenticator for the given auth
// service base URL. Pass nil to use a default http.Client.
func NewHTTPAuthenticator(baseURL string, httpClient *http.Client, cacheTTL time.Duration) *HTTPAuthenticator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &HTTPAuthenticator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		ttl:        cacheTTL,
		cache:      make(map[string]cachedUser),
	}
}

// Verify resolves the token to a user, consulting the cache first.
func (a *HTTPAuthenticator) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, &models.RemoteError{Status: http.StatusUnauthorized, Body: "missing token"}
	}

	a.mu.Lock()
	if entry, ok := a.cache[token]; ok && time.Now().Before(entry.expiresAt) {
		a.mu.Unlock()
		return entry.user, nil
	}
	a.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &models.RemoteError{Status: resp.StatusCode, Body: string(body)}
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("parse auth response: %w", err)
	}

	a.mu.Lock()
	a.cache[token] = cachedUser{user: &user, expiresAt: time.Now().Add(a.ttl)}
	// Opportunistic cleanup keeps the cache from growing unbounded.
	if len(a.cache) > 10000 {
		now := time.Now()
		for t, entry := range a.cache {
			if now.After(entry.expiresAt) {
				delete(a.cache, t)
			}
		}
	}
	a.mu.Unlock()

	return &user, nil
}
