package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/config"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/services"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DrawHandler handles draw-related HTTP requests
type DrawHandler struct {
	drawService services.DrawService
	cfg         *config.Config
}

// NewDrawHandler creates a new DrawHandler
func NewDrawHandler(drawService services.DrawService, cfg *config.Config) *DrawHandler {
	return &DrawHandler{
		drawService: drawService,
		cfg:         cfg,
	}
}

// respondDrawError maps domain errors to HTTP statuses
func respondDrawError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrDrawNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNoAvailableDraw):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConfigurationLocked),
		errors.Is(err, models.ErrDrawLocked),
		errors.Is(err, models.ErrWinnerAlreadySelected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNoEntries),
		errors.Is(err, models.ErrInvalidEntryCount),
		errors.Is(err, models.ErrInvalidEntrySource),
		errors.Is(err, models.ErrWrongDrawType),
		errors.Is(err, models.ErrDrawNotCompleted):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseDrawType(c *gin.Context) (models.DrawType, bool) {
	raw := c.DefaultQuery("type", string(models.DrawTypeMajor))
	drawType := models.DrawType(raw)
	if drawType != models.DrawTypeMajor && drawType != models.DrawTypeMini {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid draw type (MAJOR or MINI)"})
		return "", false
	}
	return drawType, true
}

func parseDrawID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// GetDrawByID handles GET /draws/:id
func (h *DrawHandler) GetDrawByID(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	draw, err := h.drawService.GetDraw(c.Request.Context(), id, time.Now().UTC())
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, draw)
}

// GetCurrentDraw handles GET /draws/current, the draw the UI should display
func (h *DrawHandler) GetCurrentDraw(c *gin.Context) {
	drawType, ok := parseDrawType(c)
	if !ok {
		return
	}
	draw, err := h.drawService.DisplayDraw(c.Request.Context(), drawType, time.Now().UTC())
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, draw)
}

// GetEntryTargetDraw handles GET /draws/current/entry-target, the draw new
// entries would count toward right now
func (h *DrawHandler) GetEntryTargetDraw(c *gin.Context) {
	drawType, ok := parseDrawType(c)
	if !ok {
		return
	}
	draw, err := h.drawService.EntryTargetDraw(c.Request.Context(), drawType, time.Now().UTC())
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, draw)
}

// GetDrawCountdown handles GET /draws/:id/countdown
func (h *DrawHandler) GetDrawCountdown(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	now := time.Now().UTC()
	draw, err := h.drawService.GetDraw(c.Request.Context(), id, now)
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"drawId":             draw.ID,
		"status":             draw.Status,
		"secondsUntilFreeze": int(draw.TimeUntilFreeze(now, h.cfg.Draws.DefaultFreezeLead).Seconds()),
		"secondsUntilDraw":   int(draw.TimeUntilDraw(now).Seconds()),
		"entriesOpen":        draw.EntriesOpen(now),
	})
}

// ListDraws handles GET /draws?status=
func (h *DrawHandler) ListDraws(c *gin.Context) {
	var statuses []models.DrawStatus
	if raw := c.Query("status"); raw != "" {
		statuses = append(statuses, models.DrawStatus(raw))
	}
	draws, err := h.drawService.ListDraws(c.Request.Context(), statuses)
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, draws)
}

// CreateDrawRequest is the admin draw-creation payload
type CreateDrawRequest struct {
	Name            string           `json:"name" binding:"required"`
	Description     string           `json:"description"`
	DrawType        models.DrawType  `json:"drawType" binding:"required"`
	Prize           models.DrawPrize `json:"prize"`
	ActivationDate  time.Time        `json:"activationDate" binding:"required"`
	FreezeEntriesAt time.Time        `json:"freezeEntriesAt"`
	DrawDate        time.Time        `json:"drawDate" binding:"required"`
	GapGraceWindow  time.Duration    `json:"gapGraceWindow"`
	FreezeLead      time.Duration    `json:"freezeLead"`
}

// CreateDraw handles POST /draws
func (h *DrawHandler) CreateDraw(c *gin.Context) {
	var request CreateDrawRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draw := &models.Draw{
		Name:            request.Name,
		Description:     request.Description,
		DrawType:        request.DrawType,
		Prize:           request.Prize,
		ActivationDate:  request.ActivationDate.UTC(),
		FreezeEntriesAt: request.FreezeEntriesAt.UTC(),
		DrawDate:        request.DrawDate.UTC(),
		GapGraceWindow:  request.GapGraceWindow,
		FreezeLead:      request.FreezeLead,
	}

	created, err := h.drawService.CreateDraw(c.Request.Context(), draw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateDraw handles PUT /draws/:id
func (h *DrawHandler) UpdateDraw(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	var patch models.DrawPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.drawService.UpdateDraw(c.Request.Context(), id, &patch, time.Now().UTC())
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// CancelDraw handles POST /draws/:id/cancel
func (h *DrawHandler) CancelDraw(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	if err := h.drawService.CancelDraw(c.Request.Context(), id, time.Now().UTC()); err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Draw cancelled"})
}

// LockDraw handles POST /draws/:id/lock
func (h *DrawHandler) LockDraw(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	if err := h.drawService.LockDraw(c.Request.Context(), id, time.Now().UTC()); err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Draw configuration locked"})
}

// SelectWinnerRequest is the admin winner-selection payload
type SelectWinnerRequest struct {
	Method string `json:"method"`
}

// SelectWinner handles POST /draws/:id/select-winner
func (h *DrawHandler) SelectWinner(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	var request SelectWinnerRequest
	// The body is optional; an absent method falls back to weighted random.
	_ = c.ShouldBindJSON(&request)
	selectedBy := c.GetString("adminId")
	draw, err := h.drawService.SelectWinner(c.Request.Context(), id, selectedBy, request.Method, time.Now().UTC())
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Winner selected", "winner": draw.Winner, "drawId": draw.ID})
}

// MarkWinnerNotified handles POST /draws/:id/winner/notified
func (h *DrawHandler) MarkWinnerNotified(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	if err := h.drawService.MarkWinnerNotified(c.Request.Context(), id); err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Winner marked notified"})
}

// CycleMiniDraw handles POST /draws/:id/cycle
func (h *DrawHandler) CycleMiniDraw(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	var schedule models.DrawSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draw, err := h.drawService.CycleMiniDraw(c.Request.Context(), id, schedule, time.Now().UTC())
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, draw)
}

// ScheduleNextMajorRequest is the payload for scheduling the next major draw
type ScheduleNextMajorRequest struct {
	Name            string           `json:"name" binding:"required"`
	Description     string           `json:"description"`
	Prize           models.DrawPrize `json:"prize"`
	ActivationDate  time.Time        `json:"activationDate" binding:"required"`
	FreezeEntriesAt time.Time        `json:"freezeEntriesAt"`
	DrawDate        time.Time        `json:"drawDate" binding:"required"`
}

// ScheduleNextMajorDraw handles POST /draws/:id/schedule-next
func (h *DrawHandler) ScheduleNextMajorDraw(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	var request ScheduleNextMajorRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next := &models.Draw{
		Name:            request.Name,
		Description:     request.Description,
		Prize:           request.Prize,
		ActivationDate:  request.ActivationDate.UTC(),
		FreezeEntriesAt: request.FreezeEntriesAt.UTC(),
		DrawDate:        request.DrawDate.UTC(),
	}
	created, err := h.drawService.ScheduleNextMajorDraw(c.Request.Context(), id, next, time.Now().UTC())
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetDrawWinners handles GET /draws/:id/winners
func (h *DrawHandler) GetDrawWinners(c *gin.Context) {
	id, ok := parseDrawID(c)
	if !ok {
		return
	}
	winners, err := h.drawService.WinnersForDraw(c.Request.Context(), id)
	if err != nil {
		respondDrawError(c, err)
		return
	}
	c.JSON(http.StatusOK, winners)
}
