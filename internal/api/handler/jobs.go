package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/logger"
	"github.com/timmy/reelforge/internal/repository"
	"github.com/timmy/reelforge/internal/service"
)

// JobReader lists and loads job records.
type JobReader interface {
	List(ctx context.Context, f repository.JobFilter) ([]domain.ContentJob, int64, error)
	GetByID(ctx context.Context, id string) (*domain.ContentJob, error)
}

// JobHandler handles job endpoints.
type JobHandler struct {
	jobs     JobReader
	progress *service.ProgressService
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: job reader for listings.
//   - progress: write path for worker updates.
//
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs JobReader, progress *service.ProgressService) *JobHandler {
	return &JobHandler{jobs: jobs, progress: progress}
}

// UpdateJobRequest is the body of PATCH /api/v1/jobs/:id. Omitted fields are unchanged.
type UpdateJobRequest struct {
	Stage        *string                `json:"stage"`
	Progress     *int                   `json:"progress"`
	ErrorMessage *string                `json:"errorMessage"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// ListJobsResponse is one page of jobs.
type ListJobsResponse struct {
	Jobs   []service.JobView `json:"jobs"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ListJobs handles GET /api/v1/jobs.
// Query: stage, channelId, limit (default 50), offset.
func (h *JobHandler) ListJobs(c *gin.Context) {
	filter := repository.JobFilter{ChannelID: c.Query("channelId")}
	if raw := c.Query("stage"); raw != "" {
		stage, err := domain.ParseStage(raw)
		if err != nil {
			respondError(c, err, "Invalid stage")
			return
		}
		filter.Stage = stage
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	jobs, total, err := h.jobs.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to list jobs")
		return
	}

	views := make([]service.JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, service.NewJobView(j))
	}
	c.JSON(http.StatusOK, ListJobsResponse{
		Jobs:   views,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load job")
		return
	}
	c.JSON(http.StatusOK, service.NewJobView(*job))
}

// UpdateJob handles PATCH /api/v1/jobs/:id, the write path for production workers.
func (h *JobHandler) UpdateJob(c *gin.Context) {
	var req UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.Stage == nil && req.Progress == nil && req.ErrorMessage == nil && len(req.Metadata) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: empty update"})
		return
	}

	id := c.Param("id")
	ctx := logger.SetJobID(c.Request.Context(), id)
	job, err := h.progress.UpdateJob(ctx, id, domain.JobUpdate{
		Stage:        req.Stage,
		Progress:     req.Progress,
		ErrorMessage: req.ErrorMessage,
		Metadata:     domain.JobMetadata(req.Metadata),
	})
	if err != nil {
		respondError(c, err, "Failed to update job")
		return
	}
	c.JSON(http.StatusOK, service.NewJobView(*job))
}
