package approval

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes pending approval requests over HTTP so a human operator
// can list and resolve them while the negotiation blocks.
type Handler struct {
	decider *ManualDecider
}

// NewHandler creates a new approval handler over a manual decider.
func NewHandler(decider *ManualDecider) *Handler {
	return &Handler{decider: decider}
}

// RegisterRoutes sets up the /api/v1 approval routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/approvals", h.ListPending)
	r.POST("/approvals/:id", h.Resolve)
}

// ListPending handles GET /api/v1/approvals
func (h *Handler) ListPending(c *gin.Context) {
	pending := h.decider.Pending()
	c.JSON(http.StatusOK, gin.H{"count": len(pending), "approvals": pending})
}

type resolveRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// Resolve handles POST /api/v1/approvals/:id
func (h *Handler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.decider.Resolve(c.Param("id"), req.Approved, req.Reason); err != nil {
		if errors.Is(err, ErrUnknownRequest) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Approval request not found or already resolved",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "resolve_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}
