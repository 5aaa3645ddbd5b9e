package kansoku

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Kansoku server (e.g. "http://localhost:7428").
	BaseURL string

	// Viewer names this client in the tokens it obtains.
	Viewer string

	// APIKey is exchanged at /auth/token for a viewer token. Leave empty
	// when using Token or talking to a server with auth disabled.
	APIKey string

	// Token is a pre-issued bearer token (see "kansoku token issue").
	// It takes precedence over APIKey.
	Token string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	// Subscribe ignores it.
	Timeout time.Duration
}

// Client is an HTTP client for the Kansoku API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	stream  *http.Client
	tokens  tokenSource
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("kansoku: BaseURL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("kansoku: invalid BaseURL: %w", err)
	}
	if cfg.APIKey != "" && cfg.Viewer == "" {
		return nil, fmt.Errorf("kansoku: Viewer is required with APIKey")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	// The event stream is long-lived; it keeps the transport but drops the timeout.
	stream := &http.Client{Transport: httpClient.Transport, Jar: httpClient.Jar}

	var tokens tokenSource = staticToken(cfg.Token)
	if cfg.Token == "" && cfg.APIKey != "" {
		tokens = newTokenManager(baseURL, cfg.Viewer, cfg.APIKey, httpClient)
	}

	return &Client{
		baseURL: baseURL,
		client:  httpClient,
		stream:  stream,
		tokens:  tokens,
	}, nil
}

// View returns the latest aggregated view of the session.
func (c *Client) View(ctx context.Context) (*View, error) {
	var v View
	if err := c.get(ctx, "/v1/view", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Refresh forces a poll and returns the resulting view. It needs an
// operator token.
func (c *Client) Refresh(ctx context.Context) (*View, error) {
	var v View
	if err := c.post(ctx, "/v1/refresh", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Journal lists timeline entries matching q.
func (c *Client) Journal(ctx context.Context, q JournalQuery) (*Page[JournalEntry], error) {
	params := url.Values{}
	setParam(params, "agent", q.Agent)
	setParam(params, "kind", strings.Join(q.Kinds, ","))
	if q.InProgress != nil {
		params.Set("in_progress", strconv.FormatBool(*q.InProgress))
	}
	setLimit(params, q.Limit)
	return getList[JournalEntry](ctx, c, "/v1/journal", params)
}

// Operations lists paired tool operations matching q.
func (c *Client) Operations(ctx context.Context, q OperationQuery) (*Page[Operation], error) {
	params := url.Values{}
	setParam(params, "tool", q.Tool)
	setParam(params, "agent", q.Agent)
	setParam(params, "status", q.Status)
	setLimit(params, q.Limit)
	return getList[Operation](ctx, c, "/v1/operations", params)
}

// Activity returns the recent activity feed, newest first. A limit of 0
// returns every item.
func (c *Client) Activity(ctx context.Context, limit int) (*Activity, error) {
	params := url.Values{}
	setLimit(params, limit)
	var a Activity
	if err := c.get(ctx, withQuery("/v1/activity", params), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Status returns the session summary, its health grade and the poll status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var s StatusResponse
	if err := c.get(ctx, "/v1/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Health checks server liveness. It does not authenticate.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if err := c.getNoAuth(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// UIState returns the persisted dashboard state. IsNotFound reports a
// server without a state store.
func (c *Client) UIState(ctx context.Context) (*UIState, error) {
	var s UIState
	if err := c.get(ctx, "/v1/ui/state", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Expand marks a journal entry as expanded.
func (c *Client) Expand(ctx context.Context, entryID uuid.UUID) error {
	return c.doMethod(ctx, http.MethodPut, "/v1/ui/expanded/"+entryID.String(), nil)
}

// Collapse clears a journal entry's expanded mark.
func (c *Client) Collapse(ctx context.Context, entryID uuid.UUID) error {
	return c.doMethod(ctx, http.MethodDelete, "/v1/ui/expanded/"+entryID.String(), nil)
}

func setParam(params url.Values, key, val string) {
	if val != "" {
		params.Set(key, val)
	}
}

func setLimit(params url.Values, limit int) {
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func getList[T any](ctx context.Context, c *Client, path string, params url.Values) (*Page[T], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+withQuery(path, params), nil)
	if err != nil {
		return nil, fmt.Errorf("kansoku: create request: %w", err)
	}
	body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	var envelope listEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("kansoku: decode list envelope: %w", err)
	}
	page := &Page[T]{
		Total:   envelope.Total,
		HasMore: envelope.HasMore,
		Limit:   envelope.Limit,
		Stale:   envelope.Meta.Stale,
	}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &page.Items); err != nil {
			return nil, fmt.Errorf("kansoku: decode list items: %w", err)
		}
	}
	return page, nil
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, dest any) error {
	return c.doMethod(ctx, http.MethodGet, path, dest)
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("kansoku: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("kansoku: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doRequest(ctx, req, dest)
}

func (c *Client) doMethod(ctx context.Context, method, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("kansoku: create request: %w", err)
	}
	return c.doRequest(ctx, req, dest)
}

func (c *Client) getNoAuth(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("kansoku: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("kansoku: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.getToken(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, req *http.Request, dest any) error {
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("kansoku: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

// send performs an authorized request and returns the raw success body.
func (c *Client) send(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kansoku: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kansoku: read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kansoku: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("kansoku: decode response envelope: %w", err)
	}
	if envelope.Data == nil {
		return json.Unmarshal(bodyBytes, dest)
	}
	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
