package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/services"
	"github.com/gin-gonic/gin"
)

// EntryHandler handles entry-award HTTP requests
type EntryHandler struct {
	entryService services.EntryService
}

// NewEntryHandler creates a new EntryHandler
func NewEntryHandler(entryService services.EntryService) *EntryHandler {
	return &EntryHandler{
		entryService: entryService,
	}
}

// AwardEntries handles POST /entries/award
func (h *EntryHandler) AwardEntries(c *gin.Context) {
	var request services.AwardEntriesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.entryService.AwardEntries(c.Request.Context(), &request, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidEntryCount), errors.Is(err, models.ErrInvalidEntrySource):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	if result.Unrouted {
		// Accepted but parked for reconciliation
		c.JSON(http.StatusAccepted, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListUnroutedEvents handles GET /entries/unrouted
func (h *EntryHandler) ListUnroutedEvents(c *gin.Context) {
	events, err := h.entryService.UnroutedEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, events)
}
