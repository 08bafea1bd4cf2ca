package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/reelforge/internal/domain"
)

// StageInfo describes one catalog stage.
type StageInfo struct {
	Stage    domain.Stage `json:"stage"`
	Order    *int         `json:"order"`
	Label    string       `json:"label"`
	Terminal bool         `json:"terminal"`
	Working  bool         `json:"working"`
}

// ListStages handles GET /api/v1/stages.
// The failed stage is listed last with a null order.
func ListStages(c *gin.Context) {
	ordered := domain.OrderedStages()
	stages := make([]StageInfo, 0, len(ordered)+1)
	for i, s := range ordered {
		idx := i
		stages = append(stages, StageInfo{
			Stage:    s,
			Order:    &idx,
			Label:    domain.BadgeLabel(string(s)),
			Terminal: s.IsTerminal(),
			Working:  s.IsWorking(),
		})
	}
	stages = append(stages, StageInfo{
		Stage:    domain.StageFailed,
		Label:    domain.BadgeLabel(string(domain.StageFailed)),
		Terminal: true,
	})
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}
