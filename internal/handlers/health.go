package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventnest/eventnest/internal/monitoring"
)

// HealthHandler serves liveness and readiness reports.
type HealthHandler struct {
	manager *monitoring.HealthManager
}

// NewHealthHandler wraps manager.
func NewHealthHandler(manager *monitoring.HealthManager) *HealthHandler {
	if manager == nil {
		manager = monitoring.NewHealthManager()
	}
	return &HealthHandler{manager: manager}
}

// Live GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Liveness())
}

// Ready GET /health and /health/ready. Only a down probe fails the request.
func (h *HealthHandler) Ready(c *gin.Context) {
	report := h.manager.Readiness(requestContext(c))
	status := http.StatusOK
	if report.Status == monitoring.StatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
