// Package service exposes the booking operations operators call: chef
// recommendations, a read-only SLA view and breach acknowledgement.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fulfillment_backend/internal/bookings/transport"
	"fulfillment_backend/internal/recommendation"
	"fulfillment_backend/internal/sla"
	"fulfillment_backend/platform/apperr"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// BookingReader is the read side of the booking store this service needs.
type BookingReader interface {
	GetForSLA(ctx context.Context, id uuid.UUID) (sla.Booking, error)
	GetSlot(ctx context.Context, id uuid.UUID) (time.Time, string, error)
}

// ChefPool supplies the default candidate pool.
type ChefPool interface {
	ListActiveChefIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Ranker orders candidates for a slot.
type Ranker interface {
	Recommend(ctx context.Context, slot recommendation.Slot, pool []uuid.UUID) (recommendation.Result, error)
}

// SLAEngine is the part of the SLA engine exposed over HTTP.
type SLAEngine interface {
	EvaluateBookingSla(b sla.Booking, now time.Time) (sla.Evaluation, error)
	Acknowledge(ctx context.Context, id, actor uuid.UUID, now time.Time) (sla.Acknowledgement, error)
}

// Service provides business logic for bookings
type Service struct {
	bookings BookingReader
	chefs    ChefPool
	ranker   Ranker
	engine   SLAEngine
	now      func() time.Time
}

// New creates a new bookings service
func New(bookings BookingReader, chefs ChefPool, ranker Ranker, engine SLAEngine) *Service {
	return &Service{
		bookings: bookings,
		chefs:    chefs,
		ranker:   ranker,
		engine:   engine,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// RecommendForBooking ranks chefs for a stored booking's slot. An empty
// candidate list ranks every active chef.
func (s *Service) RecommendForBooking(ctx context.Context, bookingID uuid.UUID, candidates []uuid.UUID) (*transport.RecommendationResponse, error) {
	date, eventTime, err := s.bookings.GetSlot(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		candidates, err = s.chefs.ListActiveChefIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list active chefs: %w", err)
		}
	}

	resp, err := s.recommend(ctx, date, eventTime, candidates)
	if err != nil {
		return nil, err
	}
	resp.BookingID = &bookingID
	return resp, nil
}

// RecommendForSlot ranks an explicit candidate pool for an arbitrary slot.
func (s *Service) RecommendForSlot(ctx context.Context, req transport.RecommendRequest) (*transport.RecommendationResponse, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.EventDate))
	if err != nil {
		return nil, apperr.Validation("eventDate must be YYYY-MM-DD")
	}
	return s.recommend(ctx, date, req.EventTime, req.CandidateIDs)
}

func (s *Service) recommend(ctx context.Context, date time.Time, eventTime string, candidates []uuid.UUID) (*transport.RecommendationResponse, error) {
	result, err := s.ranker.Recommend(ctx, recommendation.Slot{Date: date, Time: eventTime}, candidates)
	if err != nil {
		return nil, err
	}
	return &transport.RecommendationResponse{
		EventDate:       date.Format(dateLayout),
		EventTime:       eventTime,
		Recommendations: result.Recommendations,
		Warning:         result.Warning,
		Excluded:        result.Excluded,
	}, nil
}

// GetSLA evaluates a booking at the current instant without touching its
// stored state.
func (s *Service) GetSLA(ctx context.Context, bookingID uuid.UUID) (*transport.SLAResponse, error) {
	b, err := s.bookings.GetForSLA(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	eval, err := s.engine.EvaluateBookingSla(b, now)
	if err != nil {
		return nil, err
	}

	resp := &transport.SLAResponse{
		BookingID:       b.ID,
		EvaluatedAt:     now,
		Status:          eval.Status,
		Breaches:        nonNil(eval.Breaches),
		NewBreaches:     nonNil(eval.NewBreaches),
		StoredStatus:    b.Status,
		Ledger:          make([]transport.BreachResponse, 0, len(b.Breaches)),
		LastAlertedAt:   b.LastAlertedAt,
		LastEscalatedAt: b.LastEscalatedAt,
		Acknowledgement: b.Acknowledgement,
	}
	for _, entry := range b.Breaches {
		resp.Ledger = append(resp.Ledger, transport.BreachResponse{
			Type:        entry.Type,
			BreachedAt:  entry.BreachedAt,
			AlertedAt:   entry.AlertedAt,
			NotifiedAt:  entry.NotifiedAt,
			EscalatedAt: entry.EscalatedAt,
		})
	}
	return resp, nil
}

// AcknowledgeSLA records actor as owner of the booking's breach episode.
func (s *Service) AcknowledgeSLA(ctx context.Context, bookingID, actor uuid.UUID) (*transport.AcknowledgeResponse, error) {
	ack, err := s.engine.Acknowledge(ctx, bookingID, actor, s.now())
	if err != nil {
		return nil, err
	}
	return &transport.AcknowledgeResponse{
		BookingID:      bookingID,
		AcknowledgedAt: ack.At,
		AcknowledgedBy: ack.By,
	}, nil
}

func nonNil(d []sla.Detected) []sla.Detected {
	if d == nil {
		return []sla.Detected{}
	}
	return d
}
