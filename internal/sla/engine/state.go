package engine

import (
	"time"

	"fulfillment_backend/internal/sla"
)

// stateChanged reports whether next differs from what is stored on b.
// Times are compared by instant so a round-trip through the database does
// not count as a change.
func stateChanged(b sla.Booking, next sla.State) bool {
	if next.ClearAcknowledgement {
		return true
	}
	if b.Status != next.Status {
		return true
	}
	if !sameTime(b.LastAlertedAt, next.LastAlertedAt) || !sameTime(b.LastEscalatedAt, next.LastEscalatedAt) {
		return true
	}
	return !sameLedger(b.Breaches, next.Breaches)
}

func sameLedger(a, b sla.Ledger) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || !a[i].BreachedAt.Equal(b[i].BreachedAt) {
			return false
		}
		if !sameTime(a[i].AlertedAt, b[i].AlertedAt) ||
			!sameTime(a[i].NotifiedAt, b[i].NotifiedAt) ||
			!sameTime(a[i].EscalatedAt, b[i].EscalatedAt) {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
