package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

const maxBundleBytes = 10 << 20

// ExportBundle serializes the full service state for backup or migration.
// GET /api/v1/export
func (h *Handler) ExportBundle(c *gin.Context) {
	ctx := c.Request.Context()

	products, err := h.store.LoadProducts(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	settings, err := h.store.LoadSettings(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	bundle := models.Bundle{
		Version:    models.BundleVersion,
		ExportedAt: time.Now().UTC(),
		Products:   products,
		Settings:   settings,
		Profiles:   h.profiles,
	}

	c.Header("Content-Disposition", `attachment; filename="shelfwatch-export.json"`)
	c.JSON(http.StatusOK, bundle)
}

// ImportBundle validates an exported bundle and atomically replaces the
// current state with it. A bundle that fails validation changes nothing.
// POST /api/v1/import
func (h *Handler) ImportBundle(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBundleBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	bundle, err := models.ParseBundle(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.ReplaceAll(c.Request.Context(), bundle); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.reschedule(c)
	c.JSON(http.StatusOK, gin.H{
		"imported": len(bundle.Products),
		"settings": bundle.Settings,
	})
}
