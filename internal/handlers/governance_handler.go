package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/betlink/governance-api/internal/middleware"
	"github.com/betlink/governance-api/internal/services"
)

// GovernanceHandler exposes the pause/resume and status query operations
type GovernanceHandler struct {
	governanceService *services.GovernanceService
}

// NewGovernanceHandler creates a new governance handler
func NewGovernanceHandler(governanceService *services.GovernanceService) *GovernanceHandler {
	return &GovernanceHandler{governanceService: governanceService}
}

// GovernanceActionRequest is the body of pause/resume requests
type GovernanceActionRequest struct {
	ModuleNames []string `json:"module_names" binding:"required"`
	Reason      string   `json:"reason" binding:"required"`
}

type governanceAction func(ctx context.Context, moduleNames []string, adminID, reason, ip string) ([]services.ModuleActionResult, error)

// @Summary Request Pause
// @Description Propose pausing one or more financial modules; each activates only once a quorum of distinct admins approves
// @Tags Governance
// @Accept json
// @Produce json
// @Param request body GovernanceActionRequest true "Modules and reason"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /governance/pause [post]
func (h *GovernanceHandler) RequestPause(c *gin.Context) {
	h.handleAction(c, h.governanceService.RequestPause)
}

// @Summary Request Resume
// @Description Propose resuming one or more paused financial modules, subject to the same quorum rule
// @Tags Governance
// @Accept json
// @Produce json
// @Param request body GovernanceActionRequest true "Modules and reason"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /governance/resume [post]
func (h *GovernanceHandler) RequestResume(c *gin.Context) {
	h.handleAction(c, h.governanceService.RequestResume)
}

func (h *GovernanceHandler) handleAction(c *gin.Context, action governanceAction) {
	var req GovernanceActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "module_names and reason are required"})
		return
	}

	results, err := action(c.Request.Context(), req.ModuleNames, middleware.GetAdminID(c), req.Reason, c.ClientIP())
	if err != nil {
		if errors.Is(err, services.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// @Summary List Module Statuses
// @Description Current run state and pending proposal of every governable module
// @Tags Governance
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /governance/modules [get]
func (h *GovernanceHandler) ListModules(c *gin.Context) {
	modules, err := h.governanceService.ListStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

// @Summary Show Module Status
// @Description Current run state and pending proposal of one governable module
// @Tags Governance
// @Produce json
// @Param module_name path string true "Module name"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /governance/modules/{module_name} [get]
func (h *GovernanceHandler) ShowModule(c *gin.Context) {
	module, err := h.governanceService.GetStatus(c.Request.Context(), c.Param("module_name"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "module not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// is_running is the gate financial modules check before monetary operations.
	c.JSON(http.StatusOK, gin.H{"module": module, "is_running": module.IsRunning()})
}
