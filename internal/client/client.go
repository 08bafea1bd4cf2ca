// Package client reads the pipeline read model over HTTP under the polling contract:
// every read is a fresh fetch, a failed read keeps the last good value, and the
// next interval is the only retry.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/service"
)

// CachePolicy controls whether a read may be served from an intermediary cache.
type CachePolicy string

const (
	// CacheNoStore forces every read to reach the server.
	CacheNoStore CachePolicy = "no-store"
	// CacheDefault leaves caching to HTTP defaults.
	CacheDefault CachePolicy = "default"
)

// PollOptions is passed to every read; nothing about freshness is configured globally.
type PollOptions struct {
	Interval    time.Duration
	CachePolicy CachePolicy
}

var (
	// SummaryPoll is used by dashboard summary views.
	SummaryPoll = PollOptions{Interval: time.Second, CachePolicy: CacheNoStore}
	// DetailPoll is used by detail pages.
	DetailPoll = PollOptions{Interval: 5 * time.Second, CachePolicy: CacheNoStore}
)

// Client reads the pipeline API.
type Client struct {
	http *resty.Client
}

// New creates a Client for the API at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetHeader("Accept", "application/json")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.SetTimeout(timeout)
	return &Client{http: c}
}

type apiError struct {
	Error string `json:"error"`
}

// Snapshot fetches the pipeline snapshot.
func (c *Client) Snapshot(ctx context.Context, opts PollOptions) (*service.Snapshot, error) {
	var snap service.Snapshot
	if err := c.get(ctx, "/api/v1/pipeline/snapshot", opts, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Overview fetches the stage overview row.
func (c *Client) Overview(ctx context.Context, opts PollOptions) (*service.Overview, error) {
	var ov service.Overview
	if err := c.get(ctx, "/api/v1/pipeline/overview", opts, &ov); err != nil {
		return nil, err
	}
	return &ov, nil
}

// Status fetches automation trigger status.
func (c *Client) Status(ctx context.Context, opts PollOptions) (*service.AutomationStatus, error) {
	var st service.AutomationStatus
	if err := c.get(ctx, "/api/v1/automation/status", opts, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// TriggerDaily asks the server to start a daily run.
// A rejected run returns an error wrapping domain.ErrAlreadyRunning.
func (c *Client) TriggerDaily(ctx context.Context) (*service.DailyResult, error) {
	var result service.DailyResult
	var errResp apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&errResp).
		Post("/api/v1/automation/daily")
	if err != nil {
		return nil, fmt.Errorf("POST daily trigger: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusAccepted, http.StatusOK:
		return &result, nil
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyRunning, errResp.Error)
	default:
		return nil, fmt.Errorf("POST daily trigger: HTTP %d: %s", resp.StatusCode(), errResp.Error)
	}
}

func (c *Client) get(ctx context.Context, path string, opts PollOptions, out interface{}) error {
	var errResp apiError
	req := c.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&errResp)
	if opts.CachePolicy != CacheDefault {
		req.SetHeader("Cache-Control", "no-store")
		req.SetHeader("Pragma", "no-cache")
		req.SetQueryParam("_", strconv.FormatInt(time.Now().UnixNano(), 10))
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		if errResp.Error != "" {
			return fmt.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode(), errResp.Error)
		}
		return fmt.Errorf("GET %s: HTTP %d", path, resp.StatusCode())
	}
	return nil
}

// ErrStaleRead marks a poll result whose value is left over from an earlier fetch.
var ErrStaleRead = errors.New("showing last good data")

// StaleReadError reports a failed fetch while a previous value is still displayed.
type StaleReadError struct {
	Err         error
	LastSuccess time.Time // zero if no fetch has succeeded yet
	Failures    int       // consecutive failed fetches
}

func (e *StaleReadError) Error() string {
	if e.LastSuccess.IsZero() {
		return fmt.Sprintf("%v: no data yet (%d failed fetches)", e.Err, e.Failures)
	}
	return fmt.Sprintf("%v: %s since %s", e.Err, ErrStaleRead, e.LastSuccess.Format(time.RFC3339))
}

func (e *StaleReadError) Unwrap() []error {
	return []error{ErrStaleRead, e.Err}
}
