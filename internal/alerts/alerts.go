// Package alerts delivers SLA breach notifications to operations staff.
// The dispatcher applies quiet hours, deduplication and per-recipient daily
// caps before handing a message to the SMS or email channel.
package alerts

import (
	"time"

	"fulfillment_backend/internal/sla"

	"github.com/google/uuid"
)

// Kind separates first notifications from escalations.
type Kind string

const (
	KindPrimary    Kind = "primary"
	KindEscalation Kind = "escalation"
)

// Role selects which recipients receive an alert kind.
type Role string

const (
	RoleOps        Role = "ops"
	RoleEscalation Role = "escalation"
)

// Channel is a delivery transport.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Recipient is an operator who can be alerted.
type Recipient struct {
	ID    uuid.UUID
	Name  string
	Phone string
	Email string
	Role  Role
}

// Message is the rendered alert content.
type Message struct {
	Subject string
	Body    string
}

// Alert is one notification for one breach type of one booking.
type Alert struct {
	BookingID  uuid.UUID
	BreachType sla.BreachType
	Kind       Kind
	Message    Message
	Recipients []Recipient
}

// Outcome is the dispatcher decision for an alert.
type Outcome string

const (
	OutcomeSent                 Outcome = "sent"
	OutcomeSuppressedQuietHours Outcome = "suppressed_quiet_hours"
	OutcomeSuppressedDuplicate  Outcome = "suppressed_duplicate"
	OutcomeSuppressedRateLimit  Outcome = "suppressed_rate_limit"
	OutcomeFailed               Outcome = "failed"
	OutcomeNoRecipients         Outcome = "no_recipients"
)

// Delivered reports whether the alert reached at least one recipient.
func (o Outcome) Delivered() bool { return o == OutcomeSent }

// Delivery records one successful send.
type Delivery struct {
	RecipientID uuid.UUID
	Channel     Channel
	SentAt      time.Time
}

// Result is the dispatcher output.
type Result struct {
	Outcome    Outcome
	Deliveries []Delivery
	// Pending lists recipients that did not get the alert and are retried on
	// the next dispatch.
	Pending []uuid.UUID
	// RetryAfter is set for quiet-hours suppression.
	RetryAfter *time.Time
}

// Complete reports whether every reachable recipient has the alert, either
// from this dispatch or an earlier one inside the dedup window.
func (r Result) Complete() bool {
	if len(r.Pending) > 0 {
		return false
	}
	return r.Outcome == OutcomeSent || r.Outcome == OutcomeSuppressedDuplicate
}
