// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"fulfillment_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	Subscriber  = events.Subscriber
)

// Re-export platform functions
var (
	BaseEventAt = events.BaseEventAt
	Register    = events.Register
)

// =============================================================================
// SLA Domain Events
// =============================================================================

// SLABreachDetected is published when a breach type enters a booking's ledger.
type SLABreachDetected struct {
	BaseEvent
	BookingID  uuid.UUID `json:"bookingId"`
	BreachType string    `json:"breachType"`
	Deadline   time.Time `json:"deadline"`
}

func (e SLABreachDetected) EventName() string { return "sla.breach.detected" }

// AlertDelivery is one recipient reached by an alert.
type AlertDelivery struct {
	RecipientID uuid.UUID `json:"recipientId"`
	Channel     string    `json:"channel"`
	SentAt      time.Time `json:"sentAt"`
}

// SLAAlertDelivered is published after a primary alert reached at least one recipient.
type SLAAlertDelivered struct {
	BaseEvent
	BookingID  uuid.UUID       `json:"bookingId"`
	BreachType string          `json:"breachType"`
	Kind       string          `json:"kind"`
	Deliveries []AlertDelivery `json:"deliveries"`
}

func (e SLAAlertDelivered) EventName() string { return "sla.alert.delivered" }

// SLAEscalated is published when an unacknowledged breach is escalated.
type SLAEscalated struct {
	BaseEvent
	BookingID  uuid.UUID       `json:"bookingId"`
	BreachType string          `json:"breachType"`
	AlertedAt  time.Time       `json:"alertedAt"`
	Deliveries []AlertDelivery `json:"deliveries"`
}

func (e SLAEscalated) EventName() string { return "sla.escalated" }

// SLAAcknowledged is published when an operator takes ownership of a breach episode.
type SLAAcknowledged struct {
	BaseEvent
	BookingID uuid.UUID `json:"bookingId"`
	ActorID   uuid.UUID `json:"actorId"`
}

func (e SLAAcknowledged) EventName() string { return "sla.acknowledged" }

// SLAResolved is published when a booking's breach episode ends.
type SLAResolved struct {
	BaseEvent
	BookingID uuid.UUID `json:"bookingId"`
}

func (e SLAResolved) EventName() string { return "sla.resolved" }
