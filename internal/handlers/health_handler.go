package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/betlink/governance-api/internal/jobs"
)

// HealthHandler reports process liveness and worker statistics
type HealthHandler struct {
	worker    *jobs.Worker
	startedAt time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(worker *jobs.Worker) *HealthHandler {
	return &HealthHandler{worker: worker, startedAt: time.Now()}
}

// @Summary Health Check
// @Description Returns service status and background worker statistics
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "governance-api",
		"uptime":  time.Since(h.startedAt).String(),
		"worker":  h.worker.GetStats(),
	})
}
