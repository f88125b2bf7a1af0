package sla

import "time"

// DueEscalations returns the breach types whose escalation window has elapsed.
// An entry qualifies once now is past alertedAt+window, it has never been
// escalated, and the episode has not been acknowledged.
func DueEscalations(ledger Ledger, ack *Acknowledgement, window time.Duration, now time.Time) []BreachType {
	if ack != nil {
		return nil
	}

	due := make([]BreachType, 0)
	for _, b := range ledger {
		if b.AlertedAt == nil || b.EscalatedAt != nil {
			continue
		}
		if now.After(b.AlertedAt.Add(window)) {
			due = append(due, b.Type)
		}
	}
	return due
}

// PendingNotifications returns the entries whose primary alert has not been delivered.
func PendingNotifications(ledger Ledger) []BreachType {
	pending := make([]BreachType, 0)
	for _, b := range ledger {
		if b.NotifiedAt == nil {
			pending = append(pending, b.Type)
		}
	}
	return pending
}
