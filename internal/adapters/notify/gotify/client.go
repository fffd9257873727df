// Package gotify pushes notifications to a Gotify server.
package gotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/daybox/internal/app"
	"golang.org/x/time/rate"
)

// ErrRateLimited reports a send dropped by the local limiter.
var ErrRateLimited = errors.New("gotify: rate limited")

// ErrNotConfigured reports a missing server url or token.
var ErrNotConfigured = errors.New("gotify: url and token are required")

// Config holds configuration for the Gotify client.
type Config struct {
	URL             string
	Token           string
	Priority        int
	DelayedPriority int
	// RatePerMinute caps sends; timelapse runs can otherwise flood the server.
	RatePerMinute float64
	Burst         int
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client implements app.Notifier over the Gotify REST API.
type Client struct {
	cfg     Config
	limiter *rate.Limiter
	http    *http.Client
}

var _ app.Notifier = (*Client)(nil)

type message struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// New constructs a client.
func New(cfg Config) (*Client, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.URL == "" || cfg.Token == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 3
	}
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(cfg.RatePerMinute / 60)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		http:    httpClient,
	}, nil
}

// Notify posts one message. Delayed messages use the delayed priority.
func (c *Client) Notify(ctx context.Context, n app.Notification) error {
	if !c.limiter.Allow() {
		return ErrRateLimited
	}
	priority := c.cfg.Priority
	if n.Delayed {
		priority = c.cfg.DelayedPriority
	}
	body, err := json.Marshal(message{Title: n.Title, Message: n.Body, Priority: priority})
	if err != nil {
		return fmt.Errorf("gotify: encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gotify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gotify-Key", c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gotify: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gotify: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
