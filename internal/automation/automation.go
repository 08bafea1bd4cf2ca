// Package automation hands jobs to the external production backend and publisher.
package automation

import (
	"context"
	"time"

	"github.com/timmy/reelforge/internal/domain"
)

// KickoffMessage is the payload sent to start production of a job.
type KickoffMessage struct {
	JobID     string           `json:"jobId"`
	ChannelID string           `json:"channelId,omitempty"`
	VideoType domain.VideoType `json:"videoType"`
	Title     string           `json:"title"`
	RunDate   string           `json:"runDate,omitempty"`
	Callback  string           `json:"callback,omitempty"`
}

// PublishReceipt is what the publisher returns for an uploaded video.
type PublishReceipt struct {
	VideoID     string    `json:"videoId"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

// WorkQueue starts external production of a job.
type WorkQueue interface {
	Enqueue(ctx context.Context, job *domain.ContentJob) error
}

// Publisher uploads a finished job to its channel.
type Publisher interface {
	Publish(ctx context.Context, job *domain.ContentJob) (*PublishReceipt, error)
}

// NewKickoffMessage builds the kickoff payload for job.
func NewKickoffMessage(job *domain.ContentJob, callbackBase string) KickoffMessage {
	msg := KickoffMessage{
		JobID:     job.ID,
		VideoType: job.VideoType,
		Title:     job.Title,
		RunDate:   job.RunDate,
	}
	if job.ChannelID != nil {
		msg.ChannelID = *job.ChannelID
	}
	if callbackBase != "" {
		msg.Callback = callbackBase + "/api/v1/jobs/" + job.ID
	}
	return msg
}

// NoopQueue accepts every job without sending it anywhere.
// Workers are expected to discover pending jobs on their own.
type NoopQueue struct{}

// Enqueue implements WorkQueue.
func (NoopQueue) Enqueue(context.Context, *domain.ContentJob) error { return nil }
