package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fulfillment_backend/internal/alerts"
	"fulfillment_backend/internal/sla"
	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/lock"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]sla.Booking
	saves    int
}

func newMemoryStore(bookings ...sla.Booking) *memoryStore {
	s := &memoryStore{bookings: make(map[uuid.UUID]sla.Booking)}
	for _, b := range bookings {
		s.bookings[b.ID] = b
	}
	return s
}

func (s *memoryStore) ListOpenBookingIDs(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.bookings))
	for id := range s.bookings {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) GetForSLA(_ context.Context, id uuid.UUID) (sla.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return sla.Booking{}, apperr.NotFound("booking not found")
	}
	b.Breaches = b.Breaches.Clone()
	return b, nil
}

func (s *memoryStore) SaveSLAState(_ context.Context, id uuid.UUID, state sla.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookings[id]
	b.Status = state.Status
	b.Breaches = state.Breaches.Clone()
	b.LastAlertedAt = state.LastAlertedAt
	b.LastEscalatedAt = state.LastEscalatedAt
	if state.ClearAcknowledgement {
		b.Acknowledgement = nil
	}
	s.bookings[id] = b
	s.saves++
	return nil
}

func (s *memoryStore) Acknowledge(_ context.Context, id uuid.UUID, ack sla.Acknowledgement) (sla.Acknowledgement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookings[id]
	if b.Acknowledgement == nil {
		b.Acknowledgement = &ack
		s.bookings[id] = b
	}
	return *b.Acknowledgement, nil
}

func (s *memoryStore) get(id uuid.UUID) sla.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memoryStore) update(id uuid.UUID, fn func(*sla.Booking)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookings[id]
	fn(&b)
	s.bookings[id] = b
}

type staticRecipients map[alerts.Role][]alerts.Recipient

func (r staticRecipients) ListRecipients(_ context.Context, role alerts.Role) ([]alerts.Recipient, error) {
	return r[role], nil
}

type recordingTransport struct {
	mu   sync.Mutex
	msgs []alerts.Message
	fail func(alerts.Recipient) error
}

func (t *recordingTransport) Channel() alerts.Channel { return alerts.ChannelSMS }

func (t *recordingTransport) Send(_ context.Context, to alerts.Recipient, msg alerts.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail != nil {
		if err := t.fail(to); err != nil {
			return err
		}
	}
	t.msgs = append(t.msgs, msg)
	return nil
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

type harness struct {
	engine     *Engine
	store      *memoryStore
	transport  *recordingTransport
	recipients staticRecipients
	mr         *miniredis.Miniredis
}

var (
	ops       = alerts.Recipient{ID: uuid.New(), Name: "Ops", Phone: "+12015550123", Role: alerts.RoleOps}
	escalator = alerts.Recipient{ID: uuid.New(), Name: "Lead", Phone: "+12015550124", Role: alerts.RoleEscalation}
)

func newHarness(t *testing.T, bookings ...sla.Booking) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	window, err := sla.ParseClockWindow("22:00", "07:00")
	if err != nil {
		t.Fatalf("parse quiet hours: %v", err)
	}
	transport := &recordingTransport{}
	dispatcher := alerts.NewDispatcher(alerts.NewRedisStore(client, "test:alert"), alerts.Policy{
		QuietHours:  window,
		Location:    time.UTC,
		DailyCap:    100,
		DedupWindow: 24 * time.Hour,
		SendRate:    1000,
	}, nil, transport)

	store := newMemoryStore(bookings...)
	recipients := staticRecipients{
		alerts.RoleOps:        {ops},
		alerts.RoleEscalation: {escalator},
	}
	eng := New(store, recipients, dispatcher, lock.NewRedisLocker(client, "test:lock:"), sla.DefaultPolicy(), nil, WithConcurrency(2))
	return &harness{engine: eng, store: store, transport: transport, recipients: recipients, mr: mr}
}

// unassigned returns a booking created at created with its event ten days later.
func unassigned(created time.Time) sla.Booking {
	event := created.Add(10 * 24 * time.Hour)
	return sla.Booking{
		ID:        uuid.New(),
		CreatedAt: created,
		EventDate: time.Date(event.Year(), event.Month(), event.Day(), 0, 0, 0, 0, time.UTC),
		EventTime: "18:00",
		Status:    sla.StatusOnTrack,
	}
}

var created = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestProcessBooking_AssignmentBreachAlertsOnce(t *testing.T) {
	b := unassigned(created)
	h := newHarness(t, b)
	ctx := context.Background()

	now := created.Add(25 * time.Hour)
	rep := h.engine.ProcessBooking(ctx, b.ID, now)
	if rep.Outcome != OutcomeProcessed || rep.NewBreaches != 1 || rep.Alerts != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}

	stored := h.store.get(b.ID)
	if stored.Status != sla.StatusBreached {
		t.Fatalf("expected breached status, got %s", stored.Status)
	}
	entry, ok := stored.Breaches.Find(sla.BreachAssignment)
	if !ok {
		t.Fatalf("expected assignment breach in ledger")
	}
	if !entry.BreachedAt.Equal(created.Add(24 * time.Hour)) {
		t.Fatalf("expected deadline as breach time, got %s", entry.BreachedAt)
	}
	if entry.NotifiedAt == nil || entry.AlertedAt == nil {
		t.Fatalf("expected alerted and notified stamps, got %+v", entry)
	}

	for i := 1; i <= 10; i++ {
		rep = h.engine.ProcessBooking(ctx, b.ID, now.Add(time.Duration(i)*20*time.Minute))
		if rep.Alerts != 0 {
			t.Fatalf("cycle %d sent another alert", i)
		}
	}
	if h.transport.count() != 1 {
		t.Fatalf("expected exactly one primary alert, got %d", h.transport.count())
	}
}

func TestProcessBooking_NotifiedOnlyOnceEveryRecipientHasTheAlert(t *testing.T) {
	b := unassigned(created)
	h := newHarness(t, b)
	second := alerts.Recipient{ID: uuid.New(), Name: "Ops 2", Phone: "+12015550125", Role: alerts.RoleOps}
	h.recipients[alerts.RoleOps] = []alerts.Recipient{ops, second}
	failing := true
	h.transport.fail = func(to alerts.Recipient) error {
		if failing && to.ID == second.ID {
			return errors.New("gateway timeout")
		}
		return nil
	}
	ctx := context.Background()
	now := created.Add(25 * time.Hour)

	rep := h.engine.ProcessBooking(ctx, b.ID, now)
	if rep.Alerts != 1 {
		t.Fatalf("expected partial alert, got %+v", rep)
	}
	entry, _ := h.store.get(b.ID).Breaches.Find(sla.BreachAssignment)
	if entry.NotifiedAt != nil {
		t.Fatalf("entry must stay pending while a recipient is missing the alert")
	}

	failing = false
	rep = h.engine.ProcessBooking(ctx, b.ID, now.Add(20*time.Minute))
	if rep.Alerts != 1 {
		t.Fatalf("expected retry for the failed recipient, got %+v", rep)
	}
	entry, _ = h.store.get(b.ID).Breaches.Find(sla.BreachAssignment)
	if entry.NotifiedAt == nil {
		t.Fatalf("expected notified stamp once every recipient has the alert")
	}

	h.engine.ProcessBooking(ctx, b.ID, now.Add(40*time.Minute))
	if h.transport.count() != 2 {
		t.Fatalf("expected one alert per recipient, got %d", h.transport.count())
	}
}

func TestProcessBooking_QuietHoursDeferPrimaryButEscalateOvernight(t *testing.T) {
	b := unassigned(time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC))
	h := newHarness(t, b)
	ctx := context.Background()

	// Breach detected at 23:00 inside quiet hours.
	rep := h.engine.ProcessBooking(ctx, b.ID, time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC))
	if rep.NewBreaches != 1 || rep.Alerts != 0 {
		t.Fatalf("expected breach without alert, got %+v", rep)
	}
	entry, _ := h.store.get(b.ID).Breaches.Find(sla.BreachAssignment)
	if entry.NotifiedAt != nil {
		t.Fatalf("suppressed alert must stay pending")
	}

	// Escalation window elapses overnight and bypasses quiet hours.
	rep = h.engine.ProcessBooking(ctx, b.ID, time.Date(2026, 3, 3, 3, 5, 0, 0, time.UTC))
	if rep.Escalations != 1 || rep.Alerts != 0 {
		t.Fatalf("expected overnight escalation only, got %+v", rep)
	}

	// After quiet hours the deferred primary alert goes out.
	rep = h.engine.ProcessBooking(ctx, b.ID, time.Date(2026, 3, 3, 7, 5, 0, 0, time.UTC))
	if rep.Alerts != 1 || rep.Escalations != 0 {
		t.Fatalf("expected deferred primary alert, got %+v", rep)
	}

	entry, _ = h.store.get(b.ID).Breaches.Find(sla.BreachAssignment)
	if entry.NotifiedAt == nil || entry.EscalatedAt == nil {
		t.Fatalf("expected notified and escalated stamps, got %+v", entry)
	}
}

func TestProcessBooking_EscalatesOnceAfterWindow(t *testing.T) {
	b := unassigned(created)
	h := newHarness(t, b)
	ctx := context.Background()
	first := created.Add(25 * time.Hour)

	h.engine.ProcessBooking(ctx, b.ID, first)
	if rep := h.engine.ProcessBooking(ctx, b.ID, first.Add(4*time.Hour)); rep.Escalations != 0 {
		t.Fatalf("escalation must wait until the window has elapsed")
	}

	escalations := 0
	for i := 1; i <= 6; i++ {
		rep := h.engine.ProcessBooking(ctx, b.ID, first.Add(4*time.Hour+time.Duration(i)*10*time.Minute))
		escalations += rep.Escalations
	}
	if escalations != 1 {
		t.Fatalf("expected exactly one escalation, got %d", escalations)
	}
}

func TestProcessBooking_AcknowledgementSuppressesEscalation(t *testing.T) {
	b := unassigned(created)
	h := newHarness(t, b)
	ctx := context.Background()
	first := created.Add(25 * time.Hour)
	actor := uuid.New()

	h.engine.ProcessBooking(ctx, b.ID, first)
	if _, err := h.engine.Acknowledge(ctx, b.ID, actor, first.Add(time.Hour)); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	rep := h.engine.ProcessBooking(ctx, b.ID, first.Add(6*time.Hour))
	if rep.Escalations != 0 {
		t.Fatalf("acknowledged breach must not escalate")
	}
	if h.store.get(b.ID).Status != sla.StatusBreached {
		t.Fatalf("acknowledgement must not clear the breach")
	}
}

func TestAcknowledge_FirstWinsAndOnTrackConflicts(t *testing.T) {
	b := unassigned(created)
	h := newHarness(t, b)
	ctx := context.Background()

	if _, err := h.engine.Acknowledge(ctx, b.ID, uuid.New(), created); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for on-track booking, got %v", err)
	}

	h.engine.ProcessBooking(ctx, b.ID, created.Add(25*time.Hour))
	first, second := uuid.New(), uuid.New()
	ack1, err := h.engine.Acknowledge(ctx, b.ID, first, created.Add(26*time.Hour))
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	ack2, err := h.engine.Acknowledge(ctx, b.ID, second, created.Add(27*time.Hour))
	if err != nil {
		t.Fatalf("acknowledge again: %v", err)
	}
	if ack1.By != first || ack2.By != first || !ack2.At.Equal(ack1.At) {
		t.Fatalf("expected first acknowledgement to win, got %+v then %+v", ack1, ack2)
	}
}

func TestProcessBooking_ResolutionEndsEpisode(t *testing.T) {
	b := unassigned(created)
	h := newHarness(t, b)
	ctx := context.Background()
	now := created.Add(25 * time.Hour)

	h.engine.ProcessBooking(ctx, b.ID, now)
	if _, err := h.engine.Acknowledge(ctx, b.ID, uuid.New(), now); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	h.store.update(b.ID, func(bk *sla.Booking) {
		bk.Assignment = &sla.Assignment{ChefID: uuid.New(), Status: sla.AssignmentConfirmed, CreatedAt: now}
	})
	h.engine.ProcessBooking(ctx, b.ID, now.Add(time.Hour))

	stored := h.store.get(b.ID)
	if stored.Status != sla.StatusOnTrack || len(stored.Breaches) != 0 {
		t.Fatalf("expected on_track with empty ledger, got %s %v", stored.Status, stored.Breaches.Types())
	}
	if stored.Acknowledgement != nil {
		t.Fatalf("expected acknowledgement cleared at episode end")
	}
}

func TestProcessBooking_SkipsIncompleteAndLocked(t *testing.T) {
	incomplete := sla.Booking{ID: uuid.New(), CreatedAt: created}
	locked := unassigned(created)
	h := newHarness(t, incomplete, locked)
	ctx := context.Background()

	if rep := h.engine.ProcessBooking(ctx, incomplete.ID, created.Add(time.Hour)); rep.Outcome != OutcomeSkipped || rep.Reason != "incomplete" {
		t.Fatalf("expected incomplete skip, got %+v", rep)
	}

	h.mr.Set("test:lock:"+lockPrefix+locked.ID.String(), "someone-else")
	if rep := h.engine.ProcessBooking(ctx, locked.ID, created.Add(25*time.Hour)); rep.Outcome != OutcomeSkipped || rep.Reason != "locked" {
		t.Fatalf("expected locked skip, got %+v", rep)
	}
	if h.store.saves != 0 {
		t.Fatalf("skipped bookings must not be written")
	}
}

func TestProcessBooking_UnchangedStateIsNotRewritten(t *testing.T) {
	b := unassigned(created)
	h := newHarness(t, b)
	ctx := context.Background()

	h.engine.ProcessBooking(ctx, b.ID, created.Add(time.Hour))
	if h.store.saves != 0 {
		t.Fatalf("on-track booking with no changes must not be saved, got %d saves", h.store.saves)
	}
}

func TestRunCycle_IsolatesFailures(t *testing.T) {
	good := unassigned(created)
	incomplete := sla.Booking{ID: uuid.New(), CreatedAt: created}
	h := newHarness(t, good, incomplete)

	report, err := h.engine.RunCycle(context.Background(), created.Add(25*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Bookings != 2 || report.Processed != 1 || report.Skipped != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Alerts != 1 || report.NewBreaches != 1 {
		t.Fatalf("expected one breach and one alert, got %+v", report)
	}
}

type failingList struct{ *memoryStore }

func (failingList) ListOpenBookingIDs(context.Context, time.Time) ([]uuid.UUID, error) {
	return nil, errors.New("db down")
}

func TestRunCycle_ListFailureIsReturned(t *testing.T) {
	eng := New(failingList{newMemoryStore()}, nil, nil, nil, sla.DefaultPolicy(), nil)
	if _, err := eng.RunCycle(context.Background(), created); err == nil {
		t.Fatal("expected listing failure to abort the cycle")
	}
}
