// Package transport holds the request and response shapes of the bookings API.
package transport

import (
	"time"

	"fulfillment_backend/internal/recommendation"
	"fulfillment_backend/internal/sla"

	"github.com/google/uuid"
)

// RecommendRequest ranks an explicit candidate pool for a slot.
type RecommendRequest struct {
	EventDate    string      `json:"eventDate" validate:"required,datetime=2006-01-02"`
	EventTime    string      `json:"eventTime" validate:"omitempty,clock"`
	CandidateIDs []uuid.UUID `json:"candidateIds" validate:"max=200"`
}

// BookingRecommendQuery optionally narrows the pool for a booking.
type BookingRecommendQuery struct {
	Candidates string `form:"candidates"`
}

// RecommendationResponse is the ranked list for a slot.
type RecommendationResponse struct {
	BookingID       *uuid.UUID                      `json:"bookingId,omitempty"`
	EventDate       string                          `json:"eventDate"`
	EventTime       string                          `json:"eventTime,omitempty"`
	Recommendations []recommendation.Recommendation `json:"recommendations"`
	Warning         string                          `json:"warning,omitempty"`
	Excluded        int                             `json:"excluded"`
}

// BreachResponse is one ledger entry.
type BreachResponse struct {
	Type        sla.BreachType `json:"type"`
	BreachedAt  time.Time      `json:"breachedAt"`
	AlertedAt   *time.Time     `json:"alertedAt,omitempty"`
	NotifiedAt  *time.Time     `json:"notifiedAt,omitempty"`
	EscalatedAt *time.Time     `json:"escalatedAt,omitempty"`
}

// SLAResponse shows both the stored SLA state and a fresh evaluation at EvaluatedAt.
type SLAResponse struct {
	BookingID       uuid.UUID            `json:"bookingId"`
	EvaluatedAt     time.Time            `json:"evaluatedAt"`
	Status          sla.Status           `json:"status"`
	Breaches        []sla.Detected       `json:"breaches"`
	NewBreaches     []sla.Detected       `json:"newBreaches"`
	StoredStatus    sla.Status           `json:"storedStatus"`
	Ledger          []BreachResponse     `json:"ledger"`
	LastAlertedAt   *time.Time           `json:"lastAlertedAt,omitempty"`
	LastEscalatedAt *time.Time           `json:"lastEscalatedAt,omitempty"`
	Acknowledgement *sla.Acknowledgement `json:"acknowledgement,omitempty"`
}

// AcknowledgeResponse is the acknowledgement in effect after the call.
type AcknowledgeResponse struct {
	BookingID      uuid.UUID `json:"bookingId"`
	AcknowledgedAt time.Time `json:"acknowledgedAt"`
	AcknowledgedBy uuid.UUID `json:"acknowledgedBy"`
}
