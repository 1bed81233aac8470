package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hikeclub/internal/middleware"
	"hikeclub/internal/models"
	"hikeclub/internal/policy"
	"hikeclub/internal/services"
	"hikeclub/internal/utils"
)

// HikeHandler serves the JSON API of hikes, hike histories and hike paths.
type HikeHandler struct {
	hikes  *services.HikeService
	logger *zap.Logger
}

func NewHikeHandler(hikes *services.HikeService, logger *zap.Logger) *HikeHandler {
	return &HikeHandler{hikes: hikes, logger: logger}
}

func (h *HikeHandler) HikeLoader(c *gin.Context) (policy.Resource, error) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	hike, err := h.hikes.FindHike(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return hike, nil
}

func (h *HikeHandler) HistoryLoader(c *gin.Context) (policy.Resource, error) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	hist, err := h.hikes.FindHistory(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return hist, nil
}

func (h *HikeHandler) PathLoader(c *gin.Context) (policy.Resource, error) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	p, err := h.hikes.FindPath(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (h *HikeHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrRecordNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid", "message": "Referenced hike does not exist."})
	case errors.Is(err, services.ErrDuplicateHistory):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": err.Error()})
	default:
		h.logger.Error("hike request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Something went wrong."})
	}
}

func invalid(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid", "message": err.Error()})
}

func (h *HikeHandler) ListHikes(c *gin.Context) {
	hikes, err := h.hikes.ListHikes(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hikes": hikes})
}

func (h *HikeHandler) ShowHike(c *gin.Context) {
	hike, _ := middleware.Loaded[*models.Hike](c)
	c.JSON(http.StatusOK, hike)
}

func (h *HikeHandler) CreateHike(c *gin.Context) {
	var in services.HikeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		invalid(c, err)
		return
	}
	hike, err := h.hikes.CreateHike(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hike)
}

func (h *HikeHandler) UpdateHike(c *gin.Context) {
	hike, _ := middleware.Loaded[*models.Hike](c)
	var in services.HikeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		invalid(c, err)
		return
	}
	if err := h.hikes.UpdateHike(c.Request.Context(), hike, in); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hike)
}

func (h *HikeHandler) DestroyHike(c *gin.Context) {
	hike, _ := middleware.Loaded[*models.Hike](c)
	if err := h.hikes.DestroyHike(c.Request.Context(), hike); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListHistories accepts an optional ?hike_id= filter.
func (h *HikeHandler) ListHistories(c *gin.Context) {
	var hikeID uint
	if raw := c.Query("hike_id"); raw != "" {
		id, ok := utils.ParseID(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid", "message": "hike_id must be a positive integer"})
			return
		}
		hikeID = id
	}
	histories, err := h.hikes.ListHistories(c.Request.Context(), hikeID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hike_histories": histories})
}

func (h *HikeHandler) ShowHistory(c *gin.Context) {
	hist, _ := middleware.Loaded[*models.HikeHistory](c)
	c.JSON(http.StatusOK, hist)
}

func (h *HikeHandler) CreateHistory(c *gin.Context) {
	var in services.HikeHistoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		invalid(c, err)
		return
	}
	hist, err := h.hikes.CreateHistory(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hist)
}

func (h *HikeHandler) UpdateHistory(c *gin.Context) {
	hist, _ := middleware.Loaded[*models.HikeHistory](c)
	var in services.HikeHistoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		invalid(c, err)
		return
	}
	if err := h.hikes.UpdateHistory(c.Request.Context(), hist, in); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

func (h *HikeHandler) DestroyHistory(c *gin.Context) {
	hist, _ := middleware.Loaded[*models.HikeHistory](c)
	if err := h.hikes.DestroyHistory(c.Request.Context(), hist); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HikeHandler) ListPaths(c *gin.Context) {
	paths, err := h.hikes.ListPaths(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hike_paths": paths})
}

func (h *HikeHandler) ShowPath(c *gin.Context) {
	p, _ := middleware.Loaded[*models.HikePath](c)
	c.JSON(http.StatusOK, p)
}

func (h *HikeHandler) CreatePath(c *gin.Context) {
	var in services.HikePathInput
	if err := c.ShouldBindJSON(&in); err != nil {
		invalid(c, err)
		return
	}
	p, err := h.hikes.CreatePath(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *HikeHandler) UpdatePath(c *gin.Context) {
	p, _ := middleware.Loaded[*models.HikePath](c)
	var in struct {
		Coordinates string `json:"coordinates" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		invalid(c, err)
		return
	}
	if err := h.hikes.UpdatePath(c.Request.Context(), p, in.Coordinates); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *HikeHandler) DestroyPath(c *gin.Context) {
	p, _ := middleware.Loaded[*models.HikePath](c)
	if err := h.hikes.DestroyPath(c.Request.Context(), p); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
