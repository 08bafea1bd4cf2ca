package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/reelforge/internal/config"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/service"
)

// AutomationHandler exposes the manual triggers.
type AutomationHandler struct {
	dispatcher *service.Dispatcher
	polling    config.PollingConfig
}

// NewAutomationHandler creates a new automation handler.
// Parameters:
//   - dispatcher: trigger dispatcher.
//   - polling: poll intervals advertised to clients.
//
// Returns:
//   - *AutomationHandler: initialized handler.
func NewAutomationHandler(dispatcher *service.Dispatcher, polling config.PollingConfig) *AutomationHandler {
	return &AutomationHandler{dispatcher: dispatcher, polling: polling}
}

// StatusResponse is the body of GET /api/v1/automation/status.
type StatusResponse struct {
	*service.AutomationStatus
	SummaryPollMs int64 `json:"summaryPollMs"`
	DetailPollMs  int64 `json:"detailPollMs"`
}

// TriggerDaily handles POST /api/v1/automation/daily.
func (h *AutomationHandler) TriggerDaily(c *gin.Context) {
	result, err := h.dispatcher.TriggerDaily(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{
				"accepted": false,
				"error":    err.Error(),
			})
			return
		}
		respondError(c, err, "Failed to trigger daily run")
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// CheckUploads handles POST /api/v1/automation/uploads/check.
func (h *AutomationHandler) CheckUploads(c *gin.Context) {
	result, err := h.dispatcher.CheckScheduledUploads(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to check scheduled uploads")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Status handles GET /api/v1/automation/status.
func (h *AutomationHandler) Status(c *gin.Context) {
	status, err := h.dispatcher.Status(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load automation status")
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		AutomationStatus: status,
		SummaryPollMs:    h.polling.SummaryInterval.Milliseconds(),
		DetailPollMs:     h.polling.DetailInterval.Milliseconds(),
	})
}
