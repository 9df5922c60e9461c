// Package client talks to the health status API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sbutler/safer-illinois-app/internal/codec"
	"github.com/sbutler/safer-illinois-app/internal/engine"
	"github.com/sbutler/safer-illinois-app/internal/store"
)

// Client is an HTTP client for the health status API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Rules is a fetched rule document.
type Rules struct {
	Document json.RawMessage
	ETag     string
	// NotModified is set when the server confirmed the caller's ETag.
	NotModified bool
}

// PushResult is the server's answer to a rule document upload.
type PushResult struct {
	OK      bool   `json:"ok"`
	ETag    string `json:"etag"`
	Version int64  `json:"version"`
}

// EvaluateRequest asks the server to evaluate a plaintext history.
type EvaluateRequest struct {
	UserID        string             `json:"user_id,omitempty"`
	Identity      engine.Identity    `json:"identity"`
	History       []codec.PlainEntry `json:"history"`
	Index         *int               `json:"index,omitempty"`
	CurrentStatus *codec.StatusBlob  `json:"current_status,omitempty"`
}

// EvaluateResponse is the evaluated status.
type EvaluateResponse struct {
	Status       *codec.StatusBlob `json:"status"`
	NextStepDate codec.Time        `json:"next_step_date"`
	Override     *bool             `json:"override,omitempty"`
	ETag         string            `json:"etag"`
}

// GetRules fetches the active rule document. A non-empty etag is sent as
// If-None-Match.
func (c *Client) GetRules(ctx context.Context, etag string) (*Rules, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/rules", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return &Rules{ETag: etag, NotModified: true}, nil
	case http.StatusOK:
	default:
		return nil, apiError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Rules{Document: body, ETag: resp.Header.Get("ETag")}, nil
}

// PushRules uploads doc as the new rule document.
func (c *Client) PushRules(ctx context.Context, doc []byte) (*PushResult, error) {
	var result PushResult
	if err := c.do(ctx, http.MethodPut, "/v1/rules", bytes.NewReader(doc), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListVersions returns up to limit stored versions, newest first.
func (c *Client) ListVersions(ctx context.Context, limit int) ([]store.Document, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var result struct {
		Versions []store.Document `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/rules/versions?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return result.Versions, nil
}

// Evaluate asks the server for the status of a plaintext history.
func (c *Client) Evaluate(ctx context.Context, params EvaluateRequest) (*EvaluateResponse, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var result EvaluateResponse
	if err := c.do(ctx, http.MethodPost, "/v1/status/evaluate", bytes.NewReader(body), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("API error (status %d): %s", resp.StatusCode, bytes.TrimSpace(bodyBytes))
}
