package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/service"
)

// ChannelReader lists and loads channels.
type ChannelReader interface {
	List(ctx context.Context) ([]domain.Channel, error)
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
}

// ChannelHandler serves channel schedules.
type ChannelHandler struct {
	channels ChannelReader
	timeline *service.Timeline
	now      func() time.Time
}

// NewChannelHandler creates a new channel handler.
func NewChannelHandler(channels ChannelReader, timeline *service.Timeline) *ChannelHandler {
	return &ChannelHandler{channels: channels, timeline: timeline, now: time.Now}
}

// SlotResponse is the next publish slot per video type.
type SlotResponse struct {
	ChannelID string                         `json:"channelId"`
	Timezone  string                         `json:"timezone"`
	Slots     map[domain.VideoType]time.Time `json:"slots"`
	Now       time.Time                      `json:"now"`
}

// ListChannels handles GET /api/v1/channels.
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	channels, err := h.channels.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list channels")
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// GetChannel handles GET /api/v1/channels/:id.
func (h *ChannelHandler) GetChannel(c *gin.Context) {
	ch, err := h.channels.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load channel")
		return
	}
	c.JSON(http.StatusOK, ch)
}

// NextSlot handles GET /api/v1/channels/:id/next-slot.
// Query videoType narrows the answer to one type.
func (h *ChannelHandler) NextSlot(c *gin.Context) {
	ch, err := h.channels.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load channel")
		return
	}

	types := domain.VideoTypes
	if raw := c.Query("videoType"); raw != "" {
		vt, err := domain.ParseVideoType(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		types = []domain.VideoType{vt}
	}

	now := h.now()
	resp := SlotResponse{
		ChannelID: ch.ID,
		Timezone:  h.timeline.Location(ch).String(),
		Slots:     make(map[domain.VideoType]time.Time, len(types)),
		Now:       now,
	}
	for _, vt := range types {
		slot, err := h.timeline.NextSlot(ch, vt, now)
		if err != nil {
			respondError(c, err, "Failed to compute slot")
			return
		}
		resp.Slots[vt] = slot
	}
	c.JSON(http.StatusOK, resp)
}
