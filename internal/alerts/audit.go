package alerts

import (
	"context"

	"fulfillment_backend/internal/events"
	"fulfillment_backend/platform/logger"

	"github.com/google/uuid"
)

// LogWriter persists delivered alerts.
type LogWriter interface {
	InsertLog(ctx context.Context, entries []LogEntry) error
}

// AuditLog records every delivered primary alert and escalation for
// operator history.
type AuditLog struct {
	writer LogWriter
	log    *logger.Logger
}

// NewAuditLog creates the alert history subscriber.
func NewAuditLog(writer LogWriter, log *logger.Logger) *AuditLog {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditLog{writer: writer, log: log}
}

// RegisterHandlers subscribes to the delivery events.
func (a *AuditLog) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.SLAAlertDelivered{}.EventName(), a)
	bus.Subscribe(events.SLAEscalated{}.EventName(), a)
}

// Handle implements events.Handler.
func (a *AuditLog) Handle(ctx context.Context, event events.Event) error {
	var entries []LogEntry
	switch e := event.(type) {
	case events.SLAAlertDelivered:
		entries = logEntries(e.BookingID, e.BreachType, Kind(e.Kind), e.Deliveries)
	case events.SLAEscalated:
		entries = logEntries(e.BookingID, e.BreachType, KindEscalation, e.Deliveries)
	default:
		return nil
	}
	if len(entries) == 0 {
		return nil
	}
	if err := a.writer.InsertLog(ctx, entries); err != nil {
		a.log.DatabaseError("insert alert log", err)
		return err
	}
	return nil
}

func logEntries(bookingID uuid.UUID, breachType string, kind Kind, deliveries []events.AlertDelivery) []LogEntry {
	out := make([]LogEntry, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, LogEntry{
			BookingID:   bookingID,
			BreachType:  breachType,
			Kind:        kind,
			RecipientID: d.RecipientID,
			Channel:     Channel(d.Channel),
			SentAt:      d.SentAt,
		})
	}
	return out
}
