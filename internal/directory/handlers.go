package directory

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amorce/marketplace/internal/metrics"
)

// Handler provides the trust directory HTTP surface.
type Handler struct {
	service  *Service
	adminKey string
}

// NewHandler creates a new directory handler. adminKey guards all write
// routes; an empty key disables writes entirely.
func NewHandler(service *Service, adminKey string) *Handler {
	return &Handler{service: service, adminKey: adminKey}
}

// RegisterRoutes sets up the /api/v1 directory routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/agents", h.ListAgents)
	r.GET("/agents/:id", h.GetAgent)

	write := r.Group("", h.requireAdminKey())
	write.POST("/agents", h.RegisterAgent)
	write.POST("/agents/:id/transactions", h.RecordTransaction)
	write.PUT("/agents/:id/trust", h.SetTrust)
}

// requireAdminKey rejects write requests without the directory admin key.
func (h *Handler) requireAdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Admin-Key")
		if h.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Valid X-Admin-Key header required",
			})
			return
		}
		c.Next()
	}
}

// RegisterAgent handles POST /api/v1/agents
func (h *Handler) RegisterAgent(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	profile, created, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrImmutableField) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error":   "registration_failed",
			"message": err.Error(),
		})
		return
	}

	metrics.DirectoryRegistrationsTotal.WithLabelValues(registrationLabel(created)).Inc()

	status := "updated"
	if created {
		status = "registered"
	}
	c.JSON(http.StatusOK, gin.H{
		"agent_id": profile.AgentID,
		"status":   status,
		"created":  created,
	})
}

// GetAgent handles GET /api/v1/agents/:id
func (h *Handler) GetAgent(c *gin.Context) {
	profile, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Agent not found",
		})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListAgents handles GET /api/v1/agents
func (h *Handler) ListAgents(c *gin.Context) {
	agents, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, ListResponse{Count: len(agents), Agents: agents})
}

// RecordTransaction handles POST /api/v1/agents/:id/transactions
func (h *Handler) RecordTransaction(c *gin.Context) {
	var req RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.service.RecordTransaction(c.Request.Context(), c.Param("id"), req); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrAgentNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error":   "record_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// SetTrust handles PUT /api/v1/agents/:id/trust
func (h *Handler) SetTrust(c *gin.Context) {
	var req SetTrustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.service.SetTrust(c.Request.Context(), c.Param("id"), req.TrustScore); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrAgentNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"error":   "trust_update_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func registrationLabel(created bool) string {
	if created {
		return "created"
	}
	return "updated"
}
