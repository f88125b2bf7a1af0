package alerts

import (
	"context"
	"errors"
	"time"

	"fulfillment_backend/internal/sla"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultDailyCap    = 20
	defaultDedupWindow = 24 * time.Hour
	defaultSendRate    = 5
)

// Policy configures the suppression rules.
type Policy struct {
	QuietHours  sla.ClockWindow
	Location    *time.Location
	DailyCap    int
	DedupWindow time.Duration
	// SendRate throttles outgoing sends per second across all channels.
	SendRate float64
}

// PolicyFromConfig parses the alert settings.
func PolicyFromConfig(cfg config.AlertConfig, loc *time.Location) (Policy, error) {
	window, err := sla.ParseClockWindow(cfg.GetQuietHoursStart(), cfg.GetQuietHoursEnd())
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		QuietHours:  window,
		Location:    loc,
		DailyCap:    cfg.GetDailyAlertCap(),
		DedupWindow: cfg.GetDedupWindow(),
		SendRate:    cfg.GetAlertSendRate(),
	}, nil
}

// Dispatcher decides whether an alert may be sent and delivers it.
type Dispatcher struct {
	store      Store
	transports []Transport
	policy     Policy
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewDispatcher creates a dispatcher. Transports are tried in the given order.
func NewDispatcher(store Store, policy Policy, log *logger.Logger, transports ...Transport) *Dispatcher {
	if policy.DailyCap <= 0 {
		policy.DailyCap = defaultDailyCap
	}
	if policy.DedupWindow <= 0 {
		policy.DedupWindow = defaultDedupWindow
	}
	if policy.SendRate <= 0 {
		policy.SendRate = defaultSendRate
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}

	active := make([]Transport, 0, len(transports))
	for _, t := range transports {
		if t != nil {
			active = append(active, t)
		}
	}

	return &Dispatcher{
		store:      store,
		transports: active,
		policy:     policy,
		limiter:    rate.NewLimiter(rate.Limit(policy.SendRate), 1),
		log:        log,
	}
}

// recipientState is the per-recipient result of a dispatch.
type recipientState int

const (
	recipientDelivered recipientState = iota
	recipientDuplicate
	recipientCapped
	recipientFailed
	recipientUnreachable
)

// Dispatch applies quiet hours (primary alerts only), then deduplication and
// the daily cap per recipient, and sends over the first working channel of
// each recipient. Recipients that were capped or failed transiently hold no
// reservation and are reported in Result.Pending for the next cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert, at time.Time) (Result, error) {
	local := at.In(d.policy.Location)
	if alert.Kind != KindEscalation && d.policy.QuietHours.Contains(local) {
		retry := d.policy.QuietHours.NextEnd(local)
		return d.finish(alert, Result{Outcome: OutcomeSuppressedQuietHours, RetryAfter: &retry}), nil
	}

	if len(alert.Recipients) == 0 {
		return d.finish(alert, Result{Outcome: OutcomeNoRecipients}), nil
	}

	day := sla.DayKey(at, d.policy.Location)
	var (
		deliveries []Delivery
		pending    []uuid.UUID
		duplicates int
		capped     int
		errs       []error
	)

	for _, r := range alert.Recipients {
		state, delivery, err := d.dispatchTo(ctx, alert, r, day, at)
		if err != nil {
			errs = append(errs, err)
		}
		switch state {
		case recipientDelivered:
			deliveries = append(deliveries, delivery)
		case recipientDuplicate:
			duplicates++
		case recipientCapped:
			capped++
			pending = append(pending, r.ID)
		case recipientFailed:
			pending = append(pending, r.ID)
		}
	}

	res := Result{Deliveries: deliveries, Pending: pending}
	switch {
	case len(deliveries) > 0:
		if len(errs) > 0 {
			d.log.Warn("alert partially delivered", "booking_id", alert.BookingID.String(), "pending", len(pending), "error", errors.Join(errs...))
		}
		res.Outcome = OutcomeSent
		return d.finish(alert, res), nil
	case duplicates > 0 && len(pending) == 0:
		res.Outcome = OutcomeSuppressedDuplicate
		return d.finish(alert, res), nil
	case capped > 0 && capped == len(pending):
		res.Outcome = OutcomeSuppressedRateLimit
		return d.finish(alert, res), nil
	}
	res.Outcome = OutcomeFailed
	return d.finish(alert, res), errors.Join(errs...)
}

// dispatchTo reserves the recipient's dedup key and a daily slot, then sends.
// Both reservations are given back when nothing was delivered.
func (d *Dispatcher) dispatchTo(ctx context.Context, alert Alert, r Recipient, day string, at time.Time) (recipientState, Delivery, error) {
	key := DedupKey{BookingID: alert.BookingID, BreachType: alert.BreachType, Kind: alert.Kind, RecipientID: r.ID}
	reserved, err := d.store.Reserve(ctx, key, at, d.policy.DedupWindow)
	if err != nil {
		return recipientFailed, Delivery{}, err
	}
	if !reserved {
		return recipientDuplicate, Delivery{}, nil
	}

	allowed, err := d.store.ReserveDaily(ctx, r.ID, day, d.policy.DailyCap)
	if err != nil || !allowed {
		d.release(ctx, key)
		if err != nil {
			return recipientFailed, Delivery{}, err
		}
		return recipientCapped, Delivery{}, nil
	}

	ch, retry, err := d.deliver(ctx, r, alert.Message)
	if err != nil {
		if rerr := d.store.ReleaseDaily(ctx, r.ID, day); rerr != nil {
			d.log.Warn("alert daily slot release failed", "recipient_id", r.ID.String(), "error", rerr)
		}
		d.release(ctx, key)
		if retry {
			return recipientFailed, Delivery{}, err
		}
		return recipientUnreachable, Delivery{}, err
	}
	return recipientDelivered, Delivery{RecipientID: r.ID, Channel: ch, SentAt: at}, nil
}

func (d *Dispatcher) release(ctx context.Context, key DedupKey) {
	if err := d.store.Release(ctx, key); err != nil {
		d.log.Warn("alert reservation release failed", "booking_id", key.BookingID.String(), "recipient_id", key.RecipientID.String(), "error", err)
	}
}

// deliver tries each enabled channel in order. Permanent failures disable the
// channel for the recipient before falling through to the next one. retry is
// false when only permanent failures or missing destinations were seen.
func (d *Dispatcher) deliver(ctx context.Context, r Recipient, msg Message) (Channel, bool, error) {
	disabled, err := d.store.DisabledChannels(ctx, r.ID)
	if err != nil {
		return "", true, err
	}

	var errs []error
	retry := false
	for _, t := range d.transports {
		ch := t.Channel()
		if _, off := disabled[ch]; off {
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return "", true, err
		}

		err := t.Send(ctx, r, msg)
		if err == nil {
			return ch, false, nil
		}
		if errors.Is(err, ErrNoDestination) {
			continue
		}
		if IsPermanent(err) {
			if derr := d.store.DisableChannel(ctx, r.ID, ch, err.Error()); derr != nil {
				errs = append(errs, derr)
			}
			d.log.Warn("alert channel disabled", "recipient_id", r.ID.String(), "channel", string(ch), "error", err)
		} else {
			retry = true
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return "", false, ErrNoDestination
	}
	return "", retry, errors.Join(errs...)
}

func (d *Dispatcher) finish(alert Alert, res Result) Result {
	d.log.AlertOutcome(alert.BookingID.String(), alert.BreachType.String(), string(alert.Kind), string(res.Outcome))
	return res
}
