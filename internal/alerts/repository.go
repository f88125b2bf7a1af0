package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "alerts repository not configured"

// LogEntry is one delivered alert.
type LogEntry struct {
	BookingID   uuid.UUID
	BreachType  string
	Kind        Kind
	RecipientID uuid.UUID
	Channel     Channel
	SentAt      time.Time
}

// Repository reads recipients and writes the alert log.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRecipients returns active recipients with the given role.
func (r *Repository) ListRecipients(ctx context.Context, role Role) ([]Recipient, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), role
		FROM alert_recipients
		WHERE role = $1 AND active = TRUE
		ORDER BY created_at, id`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	recipients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Recipient, error) {
		var rec Recipient
		var roleName string
		if err := row.Scan(&rec.ID, &rec.Name, &rec.Phone, &rec.Email, &roleName); err != nil {
			return Recipient{}, err
		}
		rec.Role = Role(roleName)
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan recipients: %w", err)
	}
	return recipients, nil
}

// InsertLog records delivered alerts in one batch.
func (r *Repository) InsertLog(ctx context.Context, entries []LogEntry) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO sla_alert_log (booking_id, breach_type, kind, recipient_id, channel, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			e.BookingID, e.BreachType, string(e.Kind), e.RecipientID, string(e.Channel), e.SentAt)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert alert log: %w", err)
	}
	return nil
}

// ListLog returns the most recent deliveries for a booking.
func (r *Repository) ListLog(ctx context.Context, bookingID uuid.UUID, limit int) ([]LogEntry, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT booking_id, breach_type, kind, recipient_id, channel, sent_at
		FROM sla_alert_log
		WHERE booking_id = $1
		ORDER BY sent_at DESC
		LIMIT $2`, bookingID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alert log: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LogEntry, error) {
		var e LogEntry
		var kind, channel string
		if err := row.Scan(&e.BookingID, &e.BreachType, &kind, &e.RecipientID, &channel, &e.SentAt); err != nil {
			return LogEntry{}, err
		}
		e.Kind = Kind(kind)
		e.Channel = Channel(channel)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan alert log: %w", err)
	}
	return entries, nil
}
