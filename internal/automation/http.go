package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/reelforge/internal/domain"
)

// HTTPBackend talks to the automation backend over its REST API.
// It serves as both WorkQueue and Publisher.
type HTTPBackend struct {
	client      *resty.Client
	callbackURL string
}

// HTTPConfig holds configuration for the HTTP backend.
type HTTPConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	CallbackURL string // public base URL of this service, sent to workers
}

type backendError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewHTTPBackend creates a new HTTP automation backend client.
func NewHTTPBackend(cfg *HTTPConfig) *HTTPBackend {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	return &HTTPBackend{client: client, callbackURL: cfg.CallbackURL}
}

// Enqueue posts the job to {base}/jobs.
func (b *HTTPBackend) Enqueue(ctx context.Context, job *domain.ContentJob) error {
	var errResp backendError
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(NewKickoffMessage(job, b.callbackURL)).
		SetError(&errResp).
		Post("/jobs")
	if err != nil {
		return fmt.Errorf("kickoff request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("kickoff rejected: %s", describe(resp, errResp))
	}
	return nil
}

// Publish posts to {base}/jobs/{id}/publish and returns the upload receipt.
func (b *HTTPBackend) Publish(ctx context.Context, job *domain.ContentJob) (*PublishReceipt, error) {
	var receipt PublishReceipt
	var errResp backendError
	resp, err := b.client.R().
		SetContext(ctx).
		SetPathParam("id", job.ID).
		SetBody(map[string]interface{}{
			"videoType":     job.VideoType,
			"title":         job.Title,
			"scheduledTime": job.ScheduledTime,
			"metadata":      job.Metadata,
		}).
		SetResult(&receipt).
		SetError(&errResp).
		Post("/jobs/{id}/publish")
	if err != nil {
		return nil, fmt.Errorf("publish request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("publish rejected: %s", describe(resp, errResp))
	}
	return &receipt, nil
}

func describe(resp *resty.Response, errResp backendError) string {
	switch {
	case errResp.Message != "":
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), errResp.Message)
	case errResp.Error != "":
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), errResp.Error)
	case len(resp.Body()) > 0:
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	default:
		return fmt.Sprintf("HTTP %d", resp.StatusCode())
	}
}
