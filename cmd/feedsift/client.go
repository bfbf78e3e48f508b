package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient talks to the daemon's management API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

type statusPayload struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	Enabled       bool   `json:"enabled"`
	ActiveSource  string `json:"active_source"`
	ActiveQuery   string `json:"active_query"`
	TotalFiltered int64  `json:"total_filtered"`
	CachedTexts   int64  `json:"cached_texts"`
	DatabasePath  string `json:"database_path"`
	LockFilePath  string `json:"lock_file_path"`
}

type itemPayload struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Channel string `json:"channel"`
	Hidden  bool   `json:"hidden"`
	Decided bool   `json:"decided"`
}

type itemsPayload struct {
	Items []itemPayload `json:"items"`
}

type channelPayload struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

type channelsPayload struct {
	Channels []channelPayload `json:"channels"`
}

type statsPayload struct {
	TotalFiltered int64 `json:"total_filtered"`
	CachedTexts   int64 `json:"cached_texts"`
}

func (c *apiClient) status(ctx context.Context) (statusPayload, error) {
	var payload statusPayload
	err := c.get(ctx, "/api/status", &payload)
	return payload, err
}

func (c *apiClient) items(ctx context.Context) ([]itemPayload, error) {
	var payload itemsPayload
	if err := c.get(ctx, "/api/items", &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *apiClient) channels(ctx context.Context) ([]channelPayload, error) {
	var payload channelsPayload
	if err := c.get(ctx, "/api/channels", &payload); err != nil {
		return nil, err
	}
	return payload.Channels, nil
}

func (c *apiClient) stats(ctx context.Context) (statsPayload, error) {
	var payload statsPayload
	err := c.get(ctx, "/api/stats", &payload)
	return payload, err
}

func (c *apiClient) allowChannel(ctx context.Context, name string) error {
	return c.post(ctx, "/api/channels/allow", map[string]string{"name": name}, nil)
}

func (c *apiClient) blockChannel(ctx context.Context, name string) error {
	return c.post(ctx, "/api/channels/block", map[string]string{"name": name}, nil)
}

func (c *apiClient) removeChannel(ctx context.Context, name string) error {
	return c.post(ctx, "/api/channels/remove", map[string]string{"name": name}, nil)
}

func (c *apiClient) setEnabled(ctx context.Context, enabled bool) error {
	return c.post(ctx, "/api/enabled", map[string]bool{"enabled": enabled}, nil)
}

func (c *apiClient) setQuery(ctx context.Context, query string) error {
	return c.post(ctx, "/api/query", map[string]string{"query": query}, nil)
}

func (c *apiClient) setSource(ctx context.Context, url string) error {
	return c.post(ctx, "/api/source", map[string]string{"url": url}, nil)
}

func (c *apiClient) reprocess(ctx context.Context) error {
	return c.post(ctx, "/api/reprocess", nil, nil)
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable (is feedsiftd running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon: unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
