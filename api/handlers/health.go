// Package handlers provides HTTP API request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// healthBody is the exact body the frontend probes for on startup.
const healthBody = "MIDI Backend is running!"

// HealthHandler answers liveness probes.
type HealthHandler struct{}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check handles GET / with a fixed plain-text body.
func (h *HealthHandler) Check(c *gin.Context) {
	c.String(http.StatusOK, healthBody)
}

// RegisterRoutes registers the health route on the router.
func (h *HealthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Check)
}
