package sla

import (
	"testing"
	"time"

	"fulfillment_backend/platform/apperr"

	"github.com/google/uuid"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newBooking(createdAt time.Time, eventIn time.Duration) Booking {
	event := createdAt.Add(eventIn)
	return Booking{
		ID:        uuid.New(),
		CreatedAt: createdAt,
		EventDate: time.Date(event.Year(), event.Month(), event.Day(), 0, 0, 0, 0, time.UTC),
		EventTime: event.Format("15:04"),
		Status:    StatusOnTrack,
	}
}

func breachTypes(ds []Detected) []BreachType {
	out := make([]BreachType, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Type)
	}
	return out
}

func hasType(ds []Detected, t BreachType) bool {
	for _, d := range ds {
		if d.Type == t {
			return true
		}
	}
	return false
}

func TestEvaluate_AssignmentBreachAfterWindow(t *testing.T) {
	b := newBooking(baseTime, 10*24*time.Hour)
	p := DefaultPolicy()

	eval, err := Evaluate(b, p, baseTime.Add(23*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Status != StatusOnTrack || len(eval.Breaches) != 0 {
		t.Fatalf("expected on_track before window, got %s %v", eval.Status, breachTypes(eval.Breaches))
	}

	eval, err = Evaluate(b, p, baseTime.Add(25*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eval.Status != StatusBreached {
		t.Fatalf("expected breached, got %s", eval.Status)
	}
	if len(eval.Breaches) != 1 || eval.Breaches[0].Type != BreachAssignment {
		t.Fatalf("expected only assignment breach, got %v", breachTypes(eval.Breaches))
	}
	if !eval.Breaches[0].Deadline.Equal(baseTime.Add(24 * time.Hour)) {
		t.Fatalf("expected deadline at creation+24h, got %s", eval.Breaches[0].Deadline)
	}
	if len(eval.NewBreaches) != 1 {
		t.Fatalf("expected assignment breach to be new, got %v", breachTypes(eval.NewBreaches))
	}
}

func TestEvaluate_ExactDeadlineIsNotBreached(t *testing.T) {
	b := newBooking(baseTime, 10*24*time.Hour)

	eval, err := Evaluate(b, DefaultPolicy(), baseTime.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eval.Breaches) != 0 {
		t.Fatalf("expected no breach exactly at the deadline, got %v", breachTypes(eval.Breaches))
	}
}

func TestEvaluate_ConfirmationBreachOnlyWhileAssigned(t *testing.T) {
	b := newBooking(baseTime, 10*24*time.Hour)
	b.Assignment = &Assignment{ChefID: uuid.New(), Status: AssignmentAssigned, CreatedAt: baseTime.Add(time.Hour)}
	now := baseTime.Add(50 * time.Hour)

	eval, err := Evaluate(b, DefaultPolicy(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasType(eval.Breaches, BreachConfirmation) {
		t.Fatalf("expected confirmation breach, got %v", breachTypes(eval.Breaches))
	}
	if hasType(eval.Breaches, BreachAssignment) {
		t.Fatalf("assigned booking must not carry an assignment breach")
	}

	b.Assignment.Status = AssignmentConfirmed
	eval, err = Evaluate(b, DefaultPolicy(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasType(eval.Breaches, BreachConfirmation) {
		t.Fatalf("confirmed assignment must not carry a confirmation breach")
	}
}

func TestEvaluate_PrepBreachInsideLeadWindow(t *testing.T) {
	b := newBooking(baseTime, 72*time.Hour)
	b.Assignment = &Assignment{ChefID: uuid.New(), Status: AssignmentConfirmed, CreatedAt: baseTime}
	eventAt := baseTime.Add(72 * time.Hour)

	eval, err := Evaluate(b, DefaultPolicy(), eventAt.Add(-23*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasType(eval.Breaches, BreachPrep) {
		t.Fatalf("expected prep breach 23h before event, got %v", breachTypes(eval.Breaches))
	}

	b.Assignment.Status = AssignmentInPrep
	eval, err = Evaluate(b, DefaultPolicy(), eventAt.Add(-23*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasType(eval.Breaches, BreachPrep) {
		t.Fatalf("in-prep assignment must not carry a prep breach")
	}
}

func TestEvaluate_ArrivalUsesCompletionWhenPresent(t *testing.T) {
	b := newBooking(baseTime, 48*time.Hour)
	b.Assignment = &Assignment{ChefID: uuid.New(), Status: AssignmentCompleted, CreatedAt: baseTime}
	eventAt := baseTime.Add(48 * time.Hour)

	onTime := eventAt.Add(10 * time.Minute)
	b.CompletedAt = &onTime
	eval, err := Evaluate(b, DefaultPolicy(), eventAt.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasType(eval.Breaches, BreachArrival) {
		t.Fatalf("completion within grace must not breach arrival")
	}

	late := eventAt.Add(20 * time.Minute)
	b.CompletedAt = &late
	eval, err = Evaluate(b, DefaultPolicy(), eventAt.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasType(eval.Breaches, BreachArrival) {
		t.Fatalf("completion after grace must breach arrival, got %v", breachTypes(eval.Breaches))
	}
}

func TestEvaluate_ArrivalWithoutCompletionUsesNow(t *testing.T) {
	b := newBooking(baseTime, 48*time.Hour)
	b.Assignment = &Assignment{ChefID: uuid.New(), Status: AssignmentInPrep, CreatedAt: baseTime}
	eventAt := baseTime.Add(48 * time.Hour)

	eval, err := Evaluate(b, DefaultPolicy(), eventAt.Add(16*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasType(eval.Breaches, BreachArrival) {
		t.Fatalf("expected arrival breach, got %v", breachTypes(eval.Breaches))
	}
}

func TestEvaluate_MissingTimeDefaultsToMidnight(t *testing.T) {
	b := newBooking(baseTime, 0)
	b.EventDate = time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	b.EventTime = ""
	b.Assignment = &Assignment{ChefID: uuid.New(), Status: AssignmentInPrep, CreatedAt: baseTime}

	eval, err := Evaluate(b, DefaultPolicy(), time.Date(2026, 3, 5, 0, 16, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasType(eval.Breaches, BreachArrival) {
		t.Fatalf("expected arrival breach 16 minutes after midnight, got %v", breachTypes(eval.Breaches))
	}
}

func TestEvaluate_IncompleteBookingsAreReported(t *testing.T) {
	cases := map[string]Booking{
		"no created at": {EventDate: baseTime},
		"no event date": {CreatedAt: baseTime},
		"bad time":      {CreatedAt: baseTime, EventDate: baseTime, EventTime: "late"},
		"no assignment timestamp": {
			CreatedAt:  baseTime,
			EventDate:  baseTime,
			Assignment: &Assignment{Status: AssignmentAssigned},
		},
	}

	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Evaluate(b, DefaultPolicy(), baseTime)
			if !apperr.Is(err, apperr.KindIncomplete) {
				t.Fatalf("expected incomplete error, got %v", err)
			}
		})
	}
}

func TestEvaluate_NewBreachesExcludeLedgerTypes(t *testing.T) {
	b := newBooking(baseTime, 10*24*time.Hour)
	alerted := baseTime.Add(25 * time.Hour)
	b.Breaches = Ledger{{Type: BreachAssignment, BreachedAt: baseTime.Add(24 * time.Hour), AlertedAt: &alerted}}

	eval, err := Evaluate(b, DefaultPolicy(), baseTime.Add(30*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eval.Breaches) != 1 {
		t.Fatalf("expected one breach, got %v", breachTypes(eval.Breaches))
	}
	if len(eval.NewBreaches) != 0 {
		t.Fatalf("expected no new breaches, got %v", breachTypes(eval.NewBreaches))
	}
}

func TestEvaluate_EventTimeInPolicyLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	p := DefaultPolicy()
	p.Location = loc

	b := Booking{
		CreatedAt:  baseTime,
		EventDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		EventTime:  "18:00",
		Assignment: &Assignment{Status: AssignmentInPrep, CreatedAt: baseTime},
	}

	// 18:00 at UTC-5 is 23:00 UTC; grace ends 23:15 UTC.
	eval, err := Evaluate(b, p, time.Date(2026, 3, 10, 23, 10, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasType(eval.Breaches, BreachArrival) {
		t.Fatalf("arrival must not breach before the zoned deadline")
	}
}
