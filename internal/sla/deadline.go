package sla

import (
	"time"

	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/config"
)

// Policy holds the deadline windows.
type Policy struct {
	AssignmentWindow   time.Duration
	ConfirmationWindow time.Duration
	// PrepLead is how long before the event preparation must have started.
	PrepLead         time.Duration
	ArrivalGrace     time.Duration
	EscalationWindow time.Duration
	Location         *time.Location
}

// DefaultPolicy returns the standard windows: 24h to assign, 48h to confirm,
// prep 24h before the event, 15 minutes arrival grace, 4h to escalate.
func DefaultPolicy() Policy {
	return Policy{
		AssignmentWindow:   24 * time.Hour,
		ConfirmationWindow: 48 * time.Hour,
		PrepLead:           24 * time.Hour,
		ArrivalGrace:       15 * time.Minute,
		EscalationWindow:   4 * time.Hour,
		Location:           time.UTC,
	}
}

// PolicyFromConfig builds a policy from configuration, keeping defaults for unset values.
func PolicyFromConfig(cfg config.SLAConfig) Policy {
	p := DefaultPolicy()
	if cfg == nil {
		return p
	}
	if v := cfg.GetAssignmentWindow(); v > 0 {
		p.AssignmentWindow = v
	}
	if v := cfg.GetConfirmationWindow(); v > 0 {
		p.ConfirmationWindow = v
	}
	if v := cfg.GetPrepLead(); v > 0 {
		p.PrepLead = v
	}
	if v := cfg.GetArrivalGrace(); v >= 0 {
		p.ArrivalGrace = v
	}
	if v := cfg.GetEscalationWindow(); v > 0 {
		p.EscalationWindow = v
	}
	if loc := cfg.GetSLALocation(); loc != nil {
		p.Location = loc
	}
	return p
}

// Evaluation is the outcome of running the deadline model once.
type Evaluation struct {
	Status   Status     `json:"status"`
	Breaches []Detected `json:"breaches"`
	// NewBreaches are the breaches whose type is not yet in the booking's ledger.
	NewBreaches []Detected `json:"newBreaches"`
}

// Evaluate computes the current breach set of b at now. It has no side
// effects; calling it repeatedly with the same inputs yields the same result.
// Bookings missing required timestamps return an apperr.KindIncomplete error.
func Evaluate(b Booking, p Policy, now time.Time) (Evaluation, error) {
	if b.CreatedAt.IsZero() {
		return Evaluation{}, apperr.Incomplete("booking has no creation timestamp")
	}
	if b.Assignment != nil && b.Assignment.CreatedAt.IsZero() {
		return Evaluation{}, apperr.Incomplete("assignment has no creation timestamp")
	}

	eventAt, err := EventDateTime(b.EventDate, b.EventTime, p.Location)
	if err != nil {
		return Evaluation{}, err
	}

	breaches := make([]Detected, 0, len(AllBreachTypes))
	for _, t := range AllBreachTypes {
		if deadline, breached := checkDeadline(t, b, p, eventAt, now); breached {
			breaches = append(breaches, Detected{Type: t, Deadline: deadline})
		}
	}

	eval := Evaluation{
		Status:      StatusOnTrack,
		Breaches:    breaches,
		NewBreaches: make([]Detected, 0),
	}
	if len(breaches) > 0 {
		eval.Status = StatusBreached
	}
	for _, d := range breaches {
		if !b.Breaches.Has(d.Type) {
			eval.NewBreaches = append(eval.NewBreaches, d)
		}
	}
	return eval, nil
}

func checkDeadline(t BreachType, b Booking, p Policy, eventAt, now time.Time) (time.Time, bool) {
	switch t {
	case BreachAssignment:
		if b.Assignment != nil {
			return time.Time{}, false
		}
		deadline := b.CreatedAt.Add(p.AssignmentWindow)
		return deadline, now.After(deadline)

	case BreachConfirmation:
		if b.Assignment == nil || b.Assignment.Status != AssignmentAssigned {
			return time.Time{}, false
		}
		deadline := b.Assignment.CreatedAt.Add(p.ConfirmationWindow)
		return deadline, now.After(deadline)

	case BreachPrep:
		if b.Assignment == nil || b.CompletedAt != nil {
			return time.Time{}, false
		}
		if b.Assignment.Status == AssignmentInPrep || b.Assignment.Status == AssignmentCompleted {
			return time.Time{}, false
		}
		deadline := eventAt.Add(-p.PrepLead)
		return deadline, now.After(deadline)

	case BreachArrival:
		deadline := eventAt.Add(p.ArrivalGrace)
		if b.CompletedAt != nil {
			return deadline, b.CompletedAt.After(deadline)
		}
		return deadline, now.After(deadline)
	}
	return time.Time{}, false
}
