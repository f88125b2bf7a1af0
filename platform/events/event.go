// Package events is the in-process event bus the SLA engine publishes to.
// Subscribers such as the alert audit log attach here; the bus itself knows
// nothing about bookings.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus.
type Event interface {
	// EventName is the routing key handlers subscribe to.
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the instant an event describes. Events emitted by an
// evaluation cycle are stamped with the cycle's clock, not the wall clock.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// BaseEventAt stamps an event with at.
func BaseEventAt(at time.Time) BaseEvent {
	return BaseEvent{Timestamp: at}
}

// Handler processes events of one name.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish runs handlers asynchronously on a context detached from ctx.
	Publish(ctx context.Context, event Event)
	// PublishSync runs handlers inline and joins their errors.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}

// Subscriber attaches its handlers to a bus.
type Subscriber interface {
	RegisterHandlers(bus Bus)
}

// Register attaches every subscriber to bus.
func Register(bus Bus, subscribers ...Subscriber) {
	for _, s := range subscribers {
		s.RegisterHandlers(bus)
	}
}
