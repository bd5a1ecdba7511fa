package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/shelfwatch/shelfwatch/internal/models"
	"github.com/shelfwatch/shelfwatch/internal/store"
)

// AddProductRequest is the payload for registering a product URL.
type AddProductRequest struct {
	URL              string            `json:"url" binding:"required"`
	Name             string            `json:"name"`
	AutoAddToCart    bool              `json:"autoAddToCart"`
	MaxQuantity      int               `json:"maxQuantity"`
	SelectedVariants map[string]string `json:"selectedVariants"`
}

// UpdateProductRequest is a partial product update. Only present fields are
// applied; monitor state changes go through the pause/resume endpoints.
type UpdateProductRequest struct {
	Name             *string            `json:"name"`
	AutoAddToCart    *bool              `json:"autoAddToCart"`
	MaxQuantity      *int               `json:"maxQuantity"`
	SelectedVariants *map[string]string `json:"selectedVariants"`
}

// ListProducts returns all monitored products.
// GET /api/v1/products
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.store.LoadProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "total": len(products)})
}

// GetProduct returns one product by id.
// GET /api/v1/products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

// AddProduct registers a new URL for monitoring.
// POST /api/v1/products
func (h *Handler) AddProduct(c *gin.Context) {
	var req AddProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be absolute http(s)"})
		return
	}

	p := models.NewProduct(req.URL)
	p.Name = req.Name
	p.AutoAddToCart = req.AutoAddToCart
	if req.MaxQuantity > 0 {
		p.MaxQuantity = req.MaxQuantity
	}
	p.SelectedVariants = req.SelectedVariants

	if err := h.store.AddProduct(c.Request.Context(), p); err != nil {
		if errors.Is(err, store.ErrDuplicateURL) {
			c.JSON(http.StatusConflict, gin.H{"error": "url is already monitored"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.reschedule(c)
	c.JSON(http.StatusCreated, p)
}

// UpdateProduct applies a partial update.
// PATCH /api/v1/products/:id
func (h *Handler) UpdateProduct(c *gin.Context) {
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.AutoAddToCart != nil {
		p.AutoAddToCart = *req.AutoAddToCart
	}
	if req.MaxQuantity != nil {
		p.MaxQuantity = *req.MaxQuantity
	}
	if req.SelectedVariants != nil {
		p.SelectedVariants = *req.SelectedVariants
	}

	if err := h.store.SaveProduct(c.Request.Context(), *p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProduct removes a product from monitoring.
// DELETE /api/v1/products/:id
func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.store.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.reschedule(c)
	c.Status(http.StatusNoContent)
}

// PauseProduct excludes a product from scheduling without losing its state.
// POST /api/v1/products/:id/pause
func (h *Handler) PauseProduct(c *gin.Context) {
	h.transition(c, func(p *models.Product) { h.machine.Pause(p) })
}

// ResumeProduct returns a paused product to active monitoring with error
// counters reset.
// POST /api/v1/products/:id/resume
func (h *Handler) ResumeProduct(c *gin.Context) {
	h.transition(c, func(p *models.Product) { h.machine.Resume(p) })
}

// CheckProductNow clears the product's backoff window and triggers a tick so
// it is checked on the next pass regardless of prior failures.
// POST /api/v1/products/:id/check
func (h *Handler) CheckProductNow(c *gin.Context) {
	p, err := h.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	p.LastChecked = nil
	if err := h.store.SaveProduct(c.Request.Context(), *p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go h.scheduler.Tick(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusAccepted, gin.H{"status": "check scheduled"})
}

func (h *Handler) transition(c *gin.Context, apply func(*models.Product)) {
	p, err := h.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	apply(p)
	if err := h.store.SaveProduct(c.Request.Context(), *p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.reschedule(c)
	c.JSON(http.StatusOK, p)
}

// reschedule re-arms the check alarm after a change to product eligibility.
// A scheduling failure does not fail the user's request.
func (h *Handler) reschedule(c *gin.Context) {
	if err := h.scheduler.Reschedule(c.Request.Context()); err != nil {
		_ = c.Error(err)
	}
}
