package kansoku

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// tokenSource yields the bearer token for a request. An empty token means
// the request is sent without an Authorization header.
type tokenSource interface {
	getToken(ctx context.Context) (string, error)
}

type staticToken string

func (s staticToken) getToken(context.Context) (string, error) { return string(s), nil }

// tokenManager exchanges the shared API key for a viewer token and
// re-exchanges shortly before it expires. It is safe for concurrent use.
type tokenManager struct {
	baseURL string
	viewer  string
	apiKey  string
	client  *http.Client
	margin  time.Duration

	mu        sync.Mutex
	token     string
	role      string
	expiresAt time.Time
}

func newTokenManager(baseURL, viewer, apiKey string, client *http.Client) *tokenManager {
	return &tokenManager{
		baseURL: baseURL,
		viewer:  viewer,
		apiKey:  apiKey,
		client:  client,
		margin:  30 * time.Second,
	}
}

func (tm *tokenManager) getToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token != "" && time.Now().Before(tm.expiresAt.Add(-tm.margin)) {
		return tm.token, nil
	}

	if err := tm.refresh(ctx); err != nil {
		return "", err
	}
	return tm.token, nil
}

type authRequest struct {
	Viewer string `json:"viewer"`
	APIKey string `json:"api_key"`
}

type authResponseEnvelope struct {
	Data struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
		Role      string    `json:"role"`
	} `json:"data"`
}

func (tm *tokenManager) refresh(ctx context.Context) error {
	body, err := json.Marshal(authRequest{Viewer: tm.viewer, APIKey: tm.apiKey})
	if err != nil {
		return fmt.Errorf("kansoku: marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("kansoku: create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tm.client.Do(req)
	if err != nil {
		return fmt.Errorf("kansoku: auth request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kansoku: read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp.StatusCode, raw)
	}

	var envelope authResponseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("kansoku: decode auth response: %w", err)
	}
	if envelope.Data.Token == "" {
		return fmt.Errorf("kansoku: auth response carried no token")
	}

	tm.token = envelope.Data.Token
	tm.role = envelope.Data.Role
	tm.expiresAt = envelope.Data.ExpiresAt
	return nil
}
