package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck pings a dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler reports the status of the database and optional dependencies
type HealthHandler struct {
	version  string
	database HealthCheck
	optional map[string]HealthCheck
}

// NewHealthHandler creates a new HealthHandler. Optional checks are reported but do not
// mark the service unhealthy.
func NewHealthHandler(version string, database HealthCheck, optional map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{version: version, database: database, optional: optional}
}

// Health returns 200 while the database is reachable
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	body := gin.H{
		"status":    "healthy",
		"database":  "healthy",
		"version":   h.version,
		"timestamp": time.Now().Unix(),
	}
	for name, check := range h.optional {
		status := "healthy"
		if err := check(ctx); err != nil {
			status = "degraded"
		}
		body[name] = status
	}

	if err := h.database(ctx); err != nil {
		body["status"] = "unhealthy"
		body["database"] = "unhealthy"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}
