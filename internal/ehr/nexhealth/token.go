package nexhealth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Token is a bearer token with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenSource produces a fresh token. Implementations perform the actual
// credential exchange; the cache decides when to call them.
type TokenSource func(ctx context.Context) (Token, error)

// TokenCache holds the process-wide shared auth token. It is an explicit,
// injected object rather than package state so adapters stay testable
// without network calls.
type TokenCache struct {
	mu      sync.Mutex
	source  TokenSource
	slop    time.Duration
	current Token
}

// NewTokenCache builds a cache around the given source. slop is subtracted
// from the token lifetime so a token nearing expiry is refreshed before it
// fails mid-request.
func NewTokenCache(source TokenSource, slop time.Duration) *TokenCache {
	if slop <= 0 {
		slop = 5 * time.Minute
	}
	return &TokenCache{source: source, slop: slop}
}

// Get returns a valid token, refreshing through the source when the cached
// one is missing or within the expiry buffer.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Value != "" && time.Now().Add(c.slop).Before(c.current.ExpiresAt) {
		return c.current.Value, nil
	}

	tok, err := c.source(ctx)
	if err != nil {
		return "", fmt.Errorf("nexhealth: token refresh: %w", err)
	}
	c.current = tok
	return tok.Value, nil
}

// Invalidate drops the cached token so the next Get refreshes. Called after
// a 401 so one retry runs with fresh credentials.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = Token{}
}

// ClientCredentials returns a TokenSource performing an OAuth 2.0 client
// credentials exchange against the EHR token endpoint.
func ClientCredentials(baseURL, clientID, clientSecret string, httpClient *http.Client) TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	tokenURL := strings.TrimSuffix(baseURL, "/") + "/auth/token"

	return func(ctx context.Context) (Token, error) {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", clientID)
		form.Set("client_secret", clientSecret)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return Token{}, fmt.Errorf("failed to create auth request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := httpClient.Do(req)
		if err != nil {
			return Token{}, fmt.Errorf("auth request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return Token{}, fmt.Errorf("auth failed (status %d): %s", resp.StatusCode, string(body))
		}

		var tokenResp struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
			TokenType   string `json:"token_type"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
			return Token{}, fmt.Errorf("failed to decode auth response: %w", err)
		}

		return Token{
			Value:     tokenResp.AccessToken,
			ExpiresAt: time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		}, nil
	}
}
