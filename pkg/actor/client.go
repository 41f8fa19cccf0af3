package actor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/larsjoon/joonify/pkg/signature"
	"github.com/larsjoon/joonify/pkg/stats"
)

// Client talks to an actor's HTTP surface from another process.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the actor served at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Stats fetches the snapshot from /api/get-stats.
func (c *Client) Stats(ctx context.Context, secret string) (stats.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/get-stats", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(SecretHeader, secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get-stats request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read get-stats response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return stats.Parse(body)
	case http.StatusForbidden:
		return nil, ErrForbidden
	default:
		return nil, fmt.Errorf("get-stats returned status %d: %s", resp.StatusCode, body)
	}
}

// Update posts a signed body to /api/update.
func (c *Client) Update(ctx context.Context, body []byte, tag string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/update", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.Header, tag)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update request failed: %w", err)
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return ErrInvalidSignature
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidPayload, msg)
	default:
		return fmt.Errorf("update returned status %d: %s", resp.StatusCode, msg)
	}
}
