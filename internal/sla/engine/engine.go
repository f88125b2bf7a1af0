// Package engine runs the SLA evaluation cycle: it loads open bookings,
// evaluates and merges their breach ledgers, dispatches alerts and
// escalations, and writes the result back to the booking store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fulfillment_backend/internal/alerts"
	"fulfillment_backend/internal/events"
	"fulfillment_backend/internal/sla"
	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/lock"
	"fulfillment_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 8
	defaultLockTTL     = 2 * time.Minute
	lockPrefix         = "sla:booking:"
)

// BookingStore is the booking persistence the engine reads and writes.
type BookingStore interface {
	ListOpenBookingIDs(ctx context.Context, today time.Time) ([]uuid.UUID, error)
	GetForSLA(ctx context.Context, id uuid.UUID) (sla.Booking, error)
	SaveSLAState(ctx context.Context, id uuid.UUID, state sla.State) error
	// Acknowledge stores ack unless the episode is already acknowledged, and
	// returns the acknowledgement in effect.
	Acknowledge(ctx context.Context, id uuid.UUID, ack sla.Acknowledgement) (sla.Acknowledgement, error)
}

// RecipientDirectory lists alert recipients by role.
type RecipientDirectory interface {
	ListRecipients(ctx context.Context, role alerts.Role) ([]alerts.Recipient, error)
}

// AlertDispatcher sends one alert.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert alerts.Alert, at time.Time) (alerts.Result, error)
}

// Engine wires the pure SLA rules to their collaborators.
type Engine struct {
	store       BookingStore
	recipients  RecipientDirectory
	dispatcher  AlertDispatcher
	locker      lock.Locker
	bus         events.Bus
	policy      sla.Policy
	concurrency int
	lockTTL     time.Duration
	log         *logger.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithConcurrency bounds how many bookings a cycle processes at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLockTTL sets how long a per-booking lock is held at most.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithEventBus publishes engine events on bus.
func WithEventBus(bus events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// New creates an engine. A nil locker falls back to an in-process lock.
func New(store BookingStore, recipients RecipientDirectory, dispatcher AlertDispatcher, locker lock.Locker, policy sla.Policy, log *logger.Logger, opts ...Option) *Engine {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if log == nil {
		log = logger.Nop()
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	e := &Engine{
		store:       store,
		recipients:  recipients,
		dispatcher:  dispatcher,
		locker:      locker,
		policy:      policy,
		concurrency: defaultConcurrency,
		lockTTL:     defaultLockTTL,
		log:         log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the deadline policy in use.
func (e *Engine) Policy() sla.Policy { return e.policy }

// EvaluateBookingSla runs the deadline model without side effects.
func (e *Engine) EvaluateBookingSla(b sla.Booking, now time.Time) (sla.Evaluation, error) {
	return sla.Evaluate(b, e.policy, now)
}

// Outcome classifies what happened to one booking in a cycle.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// BookingReport describes one ProcessBooking call.
type BookingReport struct {
	BookingID   uuid.UUID  `json:"bookingId"`
	Outcome     Outcome    `json:"outcome"`
	Reason      string     `json:"reason,omitempty"`
	Status      sla.Status `json:"status,omitempty"`
	NewBreaches int        `json:"newBreaches"`
	Alerts      int        `json:"alerts"`
	Escalations int        `json:"escalations"`
}

// CycleReport aggregates a full cycle.
type CycleReport struct {
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Bookings    int           `json:"bookings"`
	Processed   int           `json:"processed"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	NewBreaches int           `json:"newBreaches"`
	Alerts      int           `json:"alerts"`
	Escalations int           `json:"escalations"`
}

func (r *CycleReport) add(b BookingReport) {
	switch b.Outcome {
	case OutcomeProcessed:
		r.Processed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.NewBreaches += b.NewBreaches
	r.Alerts += b.Alerts
	r.Escalations += b.Escalations
}

// OpenBookingIDs lists bookings due for evaluation at now.
func (e *Engine) OpenBookingIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	local := now.In(e.policy.Location)
	y, m, d := local.Date()
	return e.store.ListOpenBookingIDs(ctx, time.Date(y, m, d, 0, 0, 0, 0, e.policy.Location))
}

// RunCycle processes every open booking with bounded concurrency. A single
// booking's failure is counted, never returned; only listing failures and
// cancellation abort the cycle.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) (CycleReport, error) {
	started := time.Now()
	report := CycleReport{StartedAt: now}

	ids, err := e.OpenBookingIDs(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list open bookings: %w", err)
	}
	report.Bookings = len(ids)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := e.ProcessBooking(gctx, id, now)
			mu.Lock()
			report.add(res)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	report.Duration = time.Since(started)

	e.log.Info("sla cycle finished",
		"bookings", report.Bookings,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"alerts", report.Alerts,
		"escalations", report.Escalations,
	)
	return report, err
}

// ProcessBooking evaluates one booking under its lock and persists the result.
func (e *Engine) ProcessBooking(ctx context.Context, id uuid.UUID, now time.Time) BookingReport {
	report := BookingReport{BookingID: id}
	log := e.log.WithBooking(id.String())

	unlock, ok, err := e.locker.TryLock(ctx, lockPrefix+id.String(), e.lockTTL)
	if err != nil {
		log.Warn("sla lock failed", "error", err)
		report.Outcome, report.Reason = OutcomeFailed, "lock_error"
		return report
	}
	if !ok {
		report.Outcome, report.Reason = OutcomeSkipped, "locked"
		return report
	}
	defer unlock()

	b, err := e.store.GetForSLA(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			report.Outcome, report.Reason = OutcomeSkipped, "not_found"
			return report
		}
		log.DatabaseError("get booking for sla", err)
		report.Outcome, report.Reason = OutcomeFailed, "load_error"
		return report
	}

	eval, err := sla.Evaluate(b, e.policy, now)
	if err != nil {
		if apperr.Is(err, apperr.KindIncomplete) {
			log.Warn("sla evaluation skipped", "reason", err.Error())
			report.Outcome, report.Reason = OutcomeSkipped, "incomplete"
			return report
		}
		log.Error("sla evaluation failed", "error", err)
		report.Outcome, report.Reason = OutcomeFailed, "evaluate_error"
		return report
	}

	ledger := sla.Merge(b.Breaches, eval.Breaches, now)
	report.NewBreaches = len(eval.NewBreaches)
	for _, d := range eval.NewBreaches {
		log.SLABreach(id.String(), d.Type.String(), d.Deadline.Format(time.RFC3339))
		e.publish(ctx, events.SLABreachDetected{
			BaseEvent:  events.BaseEventAt(now),
			BookingID:  id,
			BreachType: d.Type.String(),
			Deadline:   d.Deadline,
		})
	}

	state := sla.State{
		Status:          eval.Status,
		Breaches:        ledger,
		LastAlertedAt:   b.LastAlertedAt,
		LastEscalatedAt: b.LastEscalatedAt,
	}

	if len(ledger) == 0 {
		state.Status = sla.StatusOnTrack
		state.ClearAcknowledgement = b.Acknowledgement != nil
		if len(b.Breaches) > 0 {
			e.publish(ctx, events.SLAResolved{BaseEvent: events.BaseEventAt(now), BookingID: id})
		}
	} else {
		eventAt, _ := sla.EventDateTime(b.EventDate, b.EventTime, e.policy.Location)
		recipients := newRecipientCache(e.recipients)
		report.Alerts = e.sendPrimaryAlerts(ctx, log, b, &state, eventAt, recipients, now)
		report.Escalations = e.sendEscalations(ctx, log, b, &state, eventAt, recipients, now)
	}

	if stateChanged(b, state) {
		if err := e.store.SaveSLAState(ctx, id, state); err != nil {
			log.DatabaseError("save sla state", err)
			report.Outcome, report.Reason = OutcomeFailed, "save_error"
			return report
		}
	}

	report.Outcome = OutcomeProcessed
	report.Status = state.Status
	return report
}

// sendPrimaryAlerts notifies ops about every ledger entry not yet delivered.
// An entry is marked notified only once no recipient is left pending.
func (e *Engine) sendPrimaryAlerts(ctx context.Context, log *logger.Logger, b sla.Booking, state *sla.State, eventAt time.Time, rc *recipientCache, now time.Time) int {
	sent := 0
	for _, t := range sla.PendingNotifications(state.Breaches) {
		entry, _ := state.Breaches.Find(t)
		recipients, err := rc.get(ctx, alerts.RoleOps)
		if err != nil {
			log.ProviderUnavailable("alert_recipients", b.ID.String(), err)
			return sent
		}

		msg, err := alerts.RenderMessage(alerts.KindPrimary, alerts.MessageData{
			BookingID:  b.ID,
			BreachType: t,
			Deadline:   entry.BreachedAt,
			EventAt:    eventAt,
			Location:   e.policy.Location,
		})
		if err != nil {
			log.Error("render alert failed", "error", err)
			continue
		}

		res, err := e.dispatcher.Dispatch(ctx, alerts.Alert{
			BookingID:  b.ID,
			BreachType: t,
			Kind:       alerts.KindPrimary,
			Message:    msg,
			Recipients: recipients,
		}, now)
		if err != nil {
			log.ProviderUnavailable("alert_transport", b.ID.String(), err)
		}

		if res.Outcome == alerts.OutcomeSent {
			state.LastAlertedAt = timePtr(now)
			sent++
			e.publish(ctx, events.SLAAlertDelivered{
				BaseEvent:  events.BaseEventAt(now),
				BookingID:  b.ID,
				BreachType: t.String(),
				Kind:       string(alerts.KindPrimary),
				Deliveries: toEventDeliveries(res.Deliveries),
			})
		}
		// Duplicates were delivered by an earlier attempt inside the dedup window.
		if res.Complete() {
			state.Breaches.Update(t, func(br *sla.Breach) { br.NotifiedAt = timePtr(now) })
		}
	}
	return sent
}

// sendEscalations escalates entries past the window once per episode.
func (e *Engine) sendEscalations(ctx context.Context, log *logger.Logger, b sla.Booking, state *sla.State, eventAt time.Time, rc *recipientCache, now time.Time) int {
	due := sla.DueEscalations(state.Breaches, b.Acknowledgement, e.policy.EscalationWindow, now)
	if len(due) == 0 {
		return 0
	}

	recipients, err := rc.get(ctx, alerts.RoleEscalation)
	if err == nil && len(recipients) == 0 {
		recipients, err = rc.get(ctx, alerts.RoleOps)
	}
	if err != nil {
		log.ProviderUnavailable("alert_recipients", b.ID.String(), err)
		return 0
	}

	sent := 0
	for _, t := range due {
		entry, _ := state.Breaches.Find(t)
		msg, err := alerts.RenderMessage(alerts.KindEscalation, alerts.MessageData{
			BookingID:  b.ID,
			BreachType: t,
			Deadline:   entry.BreachedAt,
			EventAt:    eventAt,
			Window:     e.policy.EscalationWindow,
			Location:   e.policy.Location,
		})
		if err != nil {
			log.Error("render escalation failed", "error", err)
			continue
		}

		res, err := e.dispatcher.Dispatch(ctx, alerts.Alert{
			BookingID:  b.ID,
			BreachType: t,
			Kind:       alerts.KindEscalation,
			Message:    msg,
			Recipients: recipients,
		}, now)
		if err != nil {
			log.ProviderUnavailable("alert_transport", b.ID.String(), err)
		}
		if res.Complete() {
			state.Breaches.Update(t, func(br *sla.Breach) { br.EscalatedAt = timePtr(now) })
		}
		if res.Outcome == alerts.OutcomeSent {
			state.LastEscalatedAt = timePtr(now)
			sent++
			alertedAt := now
			if entry.AlertedAt != nil {
				alertedAt = *entry.AlertedAt
			}
			e.publish(ctx, events.SLAEscalated{
				BaseEvent:  events.BaseEventAt(now),
				BookingID:  b.ID,
				BreachType: t.String(),
				AlertedAt:  alertedAt,
				Deliveries: toEventDeliveries(res.Deliveries),
			})
		}
	}
	return sent
}

// Acknowledge records actor as owner of the booking's current breach episode.
// Repeated calls return the acknowledgement already in effect.
func (e *Engine) Acknowledge(ctx context.Context, id, actor uuid.UUID, now time.Time) (sla.Acknowledgement, error) {
	if actor == uuid.Nil {
		return sla.Acknowledgement{}, apperr.Validation("actor is required")
	}

	b, err := e.store.GetForSLA(ctx, id)
	if err != nil {
		return sla.Acknowledgement{}, err
	}
	if b.Acknowledgement != nil {
		return *b.Acknowledgement, nil
	}
	if b.Status != sla.StatusBreached || len(b.Breaches) == 0 {
		return sla.Acknowledgement{}, apperr.Conflict("booking has no active SLA breach to acknowledge")
	}

	// Stores keep microseconds; truncate so the winner check survives a round-trip.
	at := now.Truncate(time.Microsecond)
	ack, err := e.store.Acknowledge(ctx, id, sla.Acknowledgement{At: at, By: actor})
	if err != nil {
		return sla.Acknowledgement{}, err
	}
	if ack.By == actor && ack.At.Equal(at) {
		e.publish(ctx, events.SLAAcknowledged{BaseEvent: events.BaseEventAt(at), BookingID: id, ActorID: actor})
	}
	return ack, nil
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, event)
}

type recipientCache struct {
	dir    RecipientDirectory
	byRole map[alerts.Role][]alerts.Recipient
}

func newRecipientCache(dir RecipientDirectory) *recipientCache {
	return &recipientCache{dir: dir, byRole: make(map[alerts.Role][]alerts.Recipient)}
}

func (c *recipientCache) get(ctx context.Context, role alerts.Role) ([]alerts.Recipient, error) {
	if r, ok := c.byRole[role]; ok {
		return r, nil
	}
	if c.dir == nil {
		return nil, errors.New("recipient directory not configured")
	}
	r, err := c.dir.ListRecipients(ctx, role)
	if err != nil {
		return nil, err
	}
	c.byRole[role] = r
	return r, nil
}

func toEventDeliveries(ds []alerts.Delivery) []events.AlertDelivery {
	out := make([]events.AlertDelivery, 0, len(ds))
	for _, d := range ds {
		out = append(out, events.AlertDelivery{RecipientID: d.RecipientID, Channel: string(d.Channel), SentAt: d.SentAt})
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
