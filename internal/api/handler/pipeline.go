package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/reelforge/internal/service"
)

// PipelineHandler serves the pipeline read model.
type PipelineHandler struct {
	snapshots *service.SnapshotService
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(snapshots *service.SnapshotService) *PipelineHandler {
	return &PipelineHandler{snapshots: snapshots}
}

// Snapshot handles GET /api/v1/pipeline/snapshot.
func (h *PipelineHandler) Snapshot(c *gin.Context) {
	snap, err := h.snapshots.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to build snapshot")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Overview handles GET /api/v1/pipeline/overview.
func (h *PipelineHandler) Overview(c *gin.Context) {
	ov, err := h.snapshots.Overview(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to build overview")
		return
	}
	c.JSON(http.StatusOK, ov)
}
