package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TranscriptFetcher retrieves the call transcript from the voice platform
// for appointment note generation. Best effort: the transcript may not be
// persisted yet when the booking turn runs.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, callID string) (string, error)
}

// fetchTranscriptWithRetry fetches the transcript, waiting once for the
// given delay when it comes back empty. The upstream platform persists
// transcripts asynchronously; one bounded retry trades a few seconds of
// latency against frequently missing notes. Errors degrade to an empty
// note, never a failed booking.
func fetchTranscriptWithRetry(ctx context.Context, f TranscriptFetcher, callID string, delay time.Duration) string {
	if f == nil {
		return ""
	}

	text, err := f.Fetch(ctx, callID)
	if err == nil && strings.TrimSpace(text) != "" {
		return text
	}

	select {
	case <-ctx.Done():
		return ""
	case <-time.After(delay):
	}

	text, err = f.Fetch(ctx, callID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// PlatformTranscripts fetches transcripts from the voice platform's REST API.
type PlatformTranscripts struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewPlatformTranscripts creates a transcript client. Empty baseURL
// disables fetching.
func NewPlatformTranscripts(baseURL, apiKey string, timeout time.Duration) *PlatformTranscripts {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PlatformTranscripts{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the transcript text for a call.
func (p *PlatformTranscripts) Fetch(ctx context.Context, callID string) (string, error) {
	if p == nil {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/calls/%s/transcript", p.baseURL, callID), nil)
	if err != nil {
		return "", fmt.Errorf("dialog: transcript request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dialog: transcript fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dialog: transcript fetch: status %d", resp.StatusCode)
	}

	var out struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("dialog: transcript decode: %w", err)
	}
	return out.Transcript, nil
}
