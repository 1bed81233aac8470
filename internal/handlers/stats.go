package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hikeclub/internal/middleware"
	"hikeclub/internal/services"
)

type StatsHandler struct {
	stats  *services.StatsService
	logger *zap.Logger
}

func NewStatsHandler(stats *services.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// Dashboard is the public statistics page.
func (h *StatsHandler) Dashboard(c *gin.Context) {
	d, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute dashboard", zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Unable to load statistics.")
		return
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, d)
		return
	}

	maxMonth := 0
	for _, m := range d.Monthly {
		if m.Count > maxMonth {
			maxMonth = m.Count
		}
	}
	Render(c, http.StatusOK, "stats/dashboard.html", gin.H{
		"Stats":    d,
		"MaxMonth": maxMonth,
	})
}
