// Package sla holds the booking service-level rules: the four staffing
// deadlines, the breach ledger and the escalation window. Everything here is
// a pure function of its inputs and the evaluation instant.
package sla

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the SLA state persisted on a booking.
type Status string

const (
	StatusOnTrack  Status = "on_track"
	StatusBreached Status = "breached"
)

// BreachType identifies one of the four booking deadlines.
// The zero value is invalid so an undecoded type never matches a real one.
type BreachType uint8

const (
	BreachAssignment BreachType = iota + 1
	BreachConfirmation
	BreachPrep
	BreachArrival
)

// AllBreachTypes lists the deadline types in evaluation order.
var AllBreachTypes = []BreachType{BreachAssignment, BreachConfirmation, BreachPrep, BreachArrival}

var breachTypeNames = map[BreachType]string{
	BreachAssignment:   "assignment",
	BreachConfirmation: "confirmation",
	BreachPrep:         "prep",
	BreachArrival:      "arrival",
}

func (t BreachType) String() string {
	if name, ok := breachTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("breach_type(%d)", uint8(t))
}

// Valid reports whether t is one of the known deadline types.
func (t BreachType) Valid() bool {
	_, ok := breachTypeNames[t]
	return ok
}

// ParseBreachType maps a persisted name back to its type.
func ParseBreachType(value string) (BreachType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for t, name := range breachTypeNames {
		if name == normalized {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown breach type %q", value)
}

func (t BreachType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot encode invalid breach type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

func (t *BreachType) UnmarshalText(text []byte) error {
	parsed, err := ParseBreachType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AssignmentStatus is the lifecycle of the chef assignment on a booking.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "ASSIGNED"
	AssignmentConfirmed AssignmentStatus = "CONFIRMED"
	AssignmentInPrep    AssignmentStatus = "IN_PREP"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
)

// Assignment links a booking to the chef currently staffing it.
type Assignment struct {
	ChefID    uuid.UUID
	Status    AssignmentStatus
	CreatedAt time.Time
}

// Acknowledgement records the operator who took ownership of a breach episode.
type Acknowledgement struct {
	At time.Time `json:"at"`
	By uuid.UUID `json:"by"`
}

// Booking is the SLA view of a scheduled job as supplied by the booking store.
type Booking struct {
	ID        uuid.UUID
	CreatedAt time.Time
	// EventDate carries the calendar date only; EventTime optionally adds "HH:MM".
	EventDate       time.Time
	EventTime       string
	Assignment      *Assignment
	CompletedAt     *time.Time
	Status          Status
	Breaches        Ledger
	LastAlertedAt   *time.Time
	LastEscalatedAt *time.Time
	Acknowledgement *Acknowledgement
}

// Breach is one ledger entry. BreachedAt is the deadline that was crossed,
// not the moment it was detected.
type Breach struct {
	Type       BreachType `json:"type"`
	BreachedAt time.Time  `json:"breachedAt"`
	// AlertedAt is stamped when the entry is inserted and starts the escalation window.
	AlertedAt *time.Time `json:"alertedAt,omitempty"`
	// NotifiedAt is set once a primary alert has actually been delivered.
	NotifiedAt  *time.Time `json:"notifiedAt,omitempty"`
	EscalatedAt *time.Time `json:"escalatedAt,omitempty"`
}

// Detected is a breach found by the deadline model.
type Detected struct {
	Type     BreachType `json:"type"`
	Deadline time.Time  `json:"deadline"`
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// State is the SLA portion of a booking written back after an evaluation.
// The acknowledgement is only ever cleared, never set, through State so a
// concurrent acknowledgement is not overwritten.
type State struct {
	Status               Status
	Breaches             Ledger
	LastAlertedAt        *time.Time
	LastEscalatedAt      *time.Time
	ClearAcknowledgement bool
}
