package handler

import (
	"net/http"
	"strings"

	"fulfillment_backend/internal/bookings/service"
	"fulfillment_backend/internal/bookings/transport"
	"fulfillment_backend/platform/httpkit"
	"fulfillment_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidBookingID = "invalid booking id"
	msgInvalidCandidate = "invalid candidate id"
)

// Handler handles HTTP requests for bookings
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new bookings handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the booking routes
func (h *Handler) RegisterRoutes(bookings, recommendations *gin.RouterGroup) {
	bookings.GET("/:id/recommendations", h.RecommendForBooking)
	bookings.GET("/:id/sla", h.GetSLA)
	bookings.POST("/:id/sla/acknowledge", h.AcknowledgeSLA)
	recommendations.POST("", h.RecommendForSlot)
}

// RecommendForBooking handles GET /api/v1/bookings/:id/recommendations
func (h *Handler) RecommendForBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var query transport.BookingRecommendQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	candidates, err := parseCandidates(query.Candidates)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidCandidate, err.Error())
		return
	}

	result, err := h.svc.RecommendForBooking(c.Request.Context(), id, candidates)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// RecommendForSlot handles POST /api/v1/recommendations
func (h *Handler) RecommendForSlot(c *gin.Context) {
	var req transport.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.RecommendForSlot(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// GetSLA handles GET /api/v1/bookings/:id/sla
func (h *Handler) GetSLA(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	result, err := h.svc.GetSLA(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// AcknowledgeSLA handles POST /api/v1/bookings/:id/sla/acknowledge
func (h *Handler) AcknowledgeSLA(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	identity, ok := httpkit.MustGetIdentity(c)
	if !ok {
		return
	}

	result, err := h.svc.AcknowledgeSLA(c.Request.Context(), id, identity.UserID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidBookingID, nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseCandidates(raw string) ([]uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
