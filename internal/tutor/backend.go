package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Asker sends a composed request to the AI backend.
type Asker interface {
	Ask(ctx context.Context, req Request) (*Response, error)
}

// BackendClient posts composed requests to the tutoring endpoint. The bearer
// credential is supplied by the hosting environment, not by callers.
type BackendClient struct {
	url    string
	token  string
	client *http.Client
}

func NewBackendClient(url, token string) *BackendClient {
	return &BackendClient{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Ask performs the backend call. Transport errors and non-2xx statuses are
// returned as errors; the caller surfaces them as an apology, never retries.
func (b *BackendClient) Ask(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode backend request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("backend status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode backend response: %w", err)
	}
	return &out, nil
}
