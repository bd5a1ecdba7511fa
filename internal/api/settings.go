package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// GetSettings returns the current monitoring settings.
// GET /api/v1/settings
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.store.LoadSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings applies a partial settings update. The engine picks the new
// values up at its next tick; a changed check interval re-arms the schedule
// immediately.
// PATCH /api/v1/settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var patch models.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	current, err := h.store.LoadSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	updated := patch.Apply(current).Normalize()
	if err := h.store.SaveSettings(c.Request.Context(), updated); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.reschedule(c)
	c.JSON(http.StatusOK, updated)
}
