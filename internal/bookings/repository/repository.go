// Package repository provides the booking store the SLA engine reads from
// and writes its state back to.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fulfillment_backend/internal/sla"
	"fulfillment_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingNotFoundMsg = "booking not found"

// Repository provides database operations for bookings.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new bookings repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListOpenBookingIDs returns bookings whose deadlines can still move: open
// bookings with an event from yesterday onwards, plus completed ones whose
// event was yesterday or today so the arrival deadline is still judged.
func (r *Repository) ListOpenBookingIDs(ctx context.Context, today time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM bookings
		WHERE event_date >= $1::date - 1
		  AND (status = 'open' OR (status = 'completed' AND event_date <= $1::date))
		ORDER BY event_date, id`, today.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("list open bookings: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan open bookings: %w", err)
	}
	return ids, nil
}

// GetForSLA loads a booking with its current assignment and SLA state.
func (r *Repository) GetForSLA(ctx context.Context, id uuid.UUID) (sla.Booking, error) {
	var (
		b          sla.Booking
		eventTime  *string
		status     string
		ledgerJSON []byte
		ackAt      *time.Time
		ackBy      *uuid.UUID
		chefID     *uuid.UUID
		assignStat *string
		assignAt   *time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT b.id, b.created_at, b.event_date, b.event_time, b.completed_at,
			b.sla_status, b.sla_breaches, b.sla_last_alerted_at, b.sla_last_escalated_at,
			b.sla_acknowledged_at, b.sla_acknowledged_by,
			a.chef_id, a.status, a.created_at
		FROM bookings b
		LEFT JOIN LATERAL (
			SELECT chef_id, status, created_at
			FROM booking_assignments
			WHERE booking_id = b.id AND status <> 'CANCELLED'
			ORDER BY created_at DESC
			LIMIT 1
		) a ON TRUE
		WHERE b.id = $1`, id).Scan(
		&b.ID, &b.CreatedAt, &b.EventDate, &eventTime, &b.CompletedAt,
		&status, &ledgerJSON, &b.LastAlertedAt, &b.LastEscalatedAt,
		&ackAt, &ackBy,
		&chefID, &assignStat, &assignAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return sla.Booking{}, apperr.NotFound(bookingNotFoundMsg)
	}
	if err != nil {
		return sla.Booking{}, fmt.Errorf("get booking for sla: %w", err)
	}

	if eventTime != nil {
		b.EventTime = *eventTime
	}
	b.Status = sla.Status(status)
	if len(ledgerJSON) > 0 {
		if err := json.Unmarshal(ledgerJSON, &b.Breaches); err != nil {
			return sla.Booking{}, fmt.Errorf("decode sla ledger for %s: %w", id, err)
		}
	}
	if ackAt != nil && ackBy != nil {
		b.Acknowledgement = &sla.Acknowledgement{At: *ackAt, By: *ackBy}
	}
	if chefID != nil && assignStat != nil && assignAt != nil {
		b.Assignment = &sla.Assignment{
			ChefID:    *chefID,
			Status:    sla.AssignmentStatus(*assignStat),
			CreatedAt: *assignAt,
		}
	}
	return b, nil
}

// SaveSLAState writes the evaluated state. The acknowledgement columns are
// only ever cleared here.
func (r *Repository) SaveSLAState(ctx context.Context, id uuid.UUID, state sla.State) error {
	ledgerJSON, err := json.Marshal(state.Breaches)
	if err != nil {
		return fmt.Errorf("encode sla ledger: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings SET
			sla_status = $2,
			sla_breaches = $3,
			sla_last_alerted_at = $4,
			sla_last_escalated_at = $5,
			sla_acknowledged_at = CASE WHEN $6 THEN NULL ELSE sla_acknowledged_at END,
			sla_acknowledged_by = CASE WHEN $6 THEN NULL ELSE sla_acknowledged_by END,
			updated_at = now()
		WHERE id = $1`,
		id, string(state.Status), ledgerJSON, state.LastAlertedAt, state.LastEscalatedAt, state.ClearAcknowledgement)
	if err != nil {
		return fmt.Errorf("save sla state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(bookingNotFoundMsg)
	}
	return nil
}

// Acknowledge stores ack only while the booking is breached and unacknowledged,
// then returns whichever acknowledgement is in effect.
func (r *Repository) Acknowledge(ctx context.Context, id uuid.UUID, ack sla.Acknowledgement) (sla.Acknowledgement, error) {
	_, err := r.pool.Exec(ctx, `
		UPDATE bookings SET
			sla_acknowledged_at = $2,
			sla_acknowledged_by = $3,
			updated_at = now()
		WHERE id = $1 AND sla_status = 'breached' AND sla_acknowledged_at IS NULL`,
		id, ack.At, ack.By)
	if err != nil {
		return sla.Acknowledgement{}, fmt.Errorf("acknowledge sla: %w", err)
	}

	var ackAt *time.Time
	var ackBy *uuid.UUID
	err = r.pool.QueryRow(ctx, `
		SELECT sla_acknowledged_at, sla_acknowledged_by FROM bookings WHERE id = $1`, id).Scan(&ackAt, &ackBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return sla.Acknowledgement{}, apperr.NotFound(bookingNotFoundMsg)
	}
	if err != nil {
		return sla.Acknowledgement{}, fmt.Errorf("load acknowledgement: %w", err)
	}
	if ackAt == nil || ackBy == nil {
		return sla.Acknowledgement{}, apperr.Conflict("booking is not in a breached state")
	}
	return sla.Acknowledgement{At: *ackAt, By: *ackBy}, nil
}

// GetSlot returns the event date and time used to rank chefs for a booking.
func (r *Repository) GetSlot(ctx context.Context, id uuid.UUID) (time.Time, string, error) {
	var date time.Time
	var eventTime *string
	err := r.pool.QueryRow(ctx, `SELECT event_date, event_time FROM bookings WHERE id = $1`, id).Scan(&date, &eventTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, "", apperr.NotFound(bookingNotFoundMsg)
	}
	if err != nil {
		return time.Time{}, "", fmt.Errorf("get booking slot: %w", err)
	}
	if eventTime == nil {
		return date, "", nil
	}
	return date, *eventTime, nil
}
