package negotiation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides the negotiation HTTP surface.
type Handler struct {
	service *Service
}

// NewHandler creates a new negotiation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the /api/v1 negotiation routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sessions", h.OpenSession)
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/:id", h.GetSession)
	r.POST("/sessions/:id/offers", h.SubmitOffer)
	r.POST("/sessions/:id/cancel", h.CancelSession)
}

// OpenSession handles POST /api/v1/sessions
func (h *Handler) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	session, err := h.service.Open(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "open_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GetSession handles GET /api/v1/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Session not found",
		})
		return
	}
	c.JSON(http.StatusOK, session)
}

// ListSessions handles GET /api/v1/sessions?agent_id=...
func (h *Handler) ListSessions(c *gin.Context) {
	agentID := c.Query("agent_id")
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "agent_id query parameter is required",
		})
		return
	}

	sessions, err := h.service.ListByAgent(c.Request.Context(), agentID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(sessions), "sessions": sessions})
}

// submitOfferRequest is the wire form of an offer submission. The session id
// comes from the path, the offer id is assigned server-side.
type submitOfferRequest struct {
	FromAgent      string `json:"from_agent" binding:"required"`
	ToAgent        string `json:"to_agent" binding:"required"`
	Price          string `json:"price" binding:"required"`
	SequenceNumber int    `json:"sequence_number"`
	Reasoning      string `json:"reasoning"`
	Signature      string `json:"signature" binding:"required"`
}

// SubmitOffer handles POST /api/v1/sessions/:id/offers
func (h *Handler) SubmitOffer(c *gin.Context) {
	var req submitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	offer, err := OfferFromWire(c.Param("id"), req.FromAgent, req.ToAgent,
		req.Price, req.SequenceNumber, req.Reasoning, req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_offer",
			"message": err.Error(),
		})
		return
	}

	session, err := h.service.SubmitOffer(c.Request.Context(), offer)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, session)

	case errors.Is(err, ErrApprovalDenied):
		// The deal is accepted but a human withheld the commit; no receipt.
		c.JSON(http.StatusOK, gin.H{
			"session":  session,
			"approval": "denied",
			"message":  err.Error(),
		})

	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Session not found",
		})

	case errors.Is(err, ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_participant",
			"message": err.Error(),
		})

	case errors.Is(err, ErrBadSignature):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "bad_signature",
			"message": err.Error(),
		})

	case errors.Is(err, ErrSessionClosed), errors.Is(err, ErrNotYourTurn), errors.Is(err, ErrOutOfOrder):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "rejected_submission",
			"message": err.Error(),
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "submit_failed",
			"message": err.Error(),
		})
	}
}

// CancelSession handles POST /api/v1/sessions/:id/cancel
func (h *Handler) CancelSession(c *gin.Context) {
	session, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Session not found",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "cancel_failed",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, session)
}
