package alerts

import (
	"context"
	"testing"
	"time"

	"fulfillment_backend/internal/events"
	"fulfillment_backend/platform/logger"

	"github.com/google/uuid"
)

type recordingLog struct {
	entries []LogEntry
}

func (r *recordingLog) InsertLog(_ context.Context, entries []LogEntry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func TestAuditLogRecordsDeliveries(t *testing.T) {
	writer := &recordingLog{}
	bus := events.NewInMemoryBus(logger.Nop())
	NewAuditLog(writer, nil).RegisterHandlers(bus)

	booking := uuid.New()
	recipient := uuid.New()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	err := bus.PublishSync(context.Background(), events.SLAAlertDelivered{
		BaseEvent:  events.BaseEventAt(at),
		BookingID:  booking,
		BreachType: "assignment",
		Kind:       string(KindPrimary),
		Deliveries: []events.AlertDelivery{{RecipientID: recipient, Channel: string(ChannelSMS), SentAt: at}},
	})
	if err != nil {
		t.Fatalf("publish alert: %v", err)
	}
	err = bus.PublishSync(context.Background(), events.SLAEscalated{
		BaseEvent:  events.BaseEventAt(at.Add(5 * time.Hour)),
		BookingID:  booking,
		BreachType: "assignment",
		AlertedAt:  at,
		Deliveries: []events.AlertDelivery{{RecipientID: recipient, Channel: string(ChannelEmail), SentAt: at.Add(5 * time.Hour)}},
	})
	if err != nil {
		t.Fatalf("publish escalation: %v", err)
	}
	if err := bus.PublishSync(context.Background(), events.SLAResolved{BookingID: booking}); err != nil {
		t.Fatalf("publish resolved: %v", err)
	}

	if len(writer.entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(writer.entries))
	}
	first, second := writer.entries[0], writer.entries[1]
	if first.Kind != KindPrimary || first.Channel != ChannelSMS || first.BookingID != booking {
		t.Fatalf("primary entry = %+v", first)
	}
	if second.Kind != KindEscalation || second.Channel != ChannelEmail || second.RecipientID != recipient {
		t.Fatalf("escalation entry = %+v", second)
	}
}
