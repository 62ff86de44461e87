package receipts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides the receipts HTTP surface. Read-only: receipts are only
// ever created by the negotiation service.
type Handler struct {
	service *Service
}

// NewHandler creates a new receipts handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the /api/v1 receipt routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/receipts", h.ListReceipts)
	r.GET("/receipts/:id", h.GetReceipt)
	r.GET("/receipts/:id/verify", h.VerifyReceipt)
}

// GetReceipt handles GET /api/v1/receipts/:id
func (h *Handler) GetReceipt(c *gin.Context) {
	receipt, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Receipt not found",
		})
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// VerifyReceipt handles GET /api/v1/receipts/:id/verify
//
// Anyone holding the directory's public keys can re-check both signatures;
// an unknown transaction id verifies as invalid rather than erroring.
func (h *Handler) VerifyReceipt(c *gin.Context) {
	resp, err := h.service.VerifyStored(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "verify_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListReceipts handles GET /api/v1/receipts?agent_id=... or ?session_id=...
func (h *Handler) ListReceipts(c *gin.Context) {
	agentID := c.Query("agent_id")
	sessionID := c.Query("session_id")

	var (
		receipts []*Receipt
		err      error
	)
	switch {
	case sessionID != "":
		receipts, err = h.service.ListBySession(c.Request.Context(), sessionID)
	case agentID != "":
		receipts, err = h.service.ListByAgent(c.Request.Context(), agentID, 0)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "agent_id or session_id query parameter is required",
		})
		return
	}

	if err != nil {
		if errors.Is(err, ErrReceiptNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No receipts found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(receipts), "receipts": receipts})
}
