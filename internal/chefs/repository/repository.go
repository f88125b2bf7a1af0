// Package repository is the chef directory: availability, workload and
// performance metrics read from PostgreSQL. It never writes.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment_backend/internal/recommendation"
	"fulfillment_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const chefNotFoundMsg = "chef not found"

// Repository provides read access to chefs and their commitments.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new chef directory repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsAvailable reports whether the chef is active, has no blocking override on
// the slot date and no overlapping commitment.
func (r *Repository) IsAvailable(ctx context.Context, chefID uuid.UUID, slot recommendation.Slot) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT active FROM chefs WHERE id = $1`, chefID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load chef: %w", err)
	}
	if !active {
		return false, nil
	}

	date := slot.Date.Format("2006-01-02")

	overrideRows, err := r.pool.Query(ctx, `
		SELECT is_available,
			COALESCE(to_char(start_time, 'HH24:MI'), ''),
			COALESCE(to_char(end_time, 'HH24:MI'), '')
		FROM chef_availability_overrides
		WHERE chef_id = $1 AND date = $2::date`, chefID, date)
	if err != nil {
		return false, fmt.Errorf("load availability overrides: %w", err)
	}
	overrides, err := pgx.CollectRows(overrideRows, func(row pgx.CollectableRow) (Override, error) {
		var o Override
		err := row.Scan(&o.Available, &o.Start, &o.End)
		return o, err
	})
	if err != nil {
		return false, fmt.Errorf("scan availability overrides: %w", err)
	}

	commitmentRows, err := r.pool.Query(ctx, `
		SELECT COALESCE(b.event_time, '')
		FROM booking_assignments a
		JOIN bookings b ON b.id = a.booking_id
		WHERE a.chef_id = $1
		  AND a.status <> 'CANCELLED'
		  AND b.status <> 'cancelled'
		  AND b.event_date = $2::date`, chefID, date)
	if err != nil {
		return false, fmt.Errorf("load commitments: %w", err)
	}
	commitments, err := pgx.CollectRows(commitmentRows, pgx.RowTo[string])
	if err != nil {
		return false, fmt.Errorf("scan commitments: %w", err)
	}

	return SlotFree(slot.Time, overrides, commitments), nil
}

// CountCommitments counts non-cancelled assignments with an event date in [from, to].
func (r *Repository) CountCommitments(ctx context.Context, chefID uuid.UUID, from, to time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM booking_assignments a
		JOIN bookings b ON b.id = a.booking_id
		WHERE a.chef_id = $1
		  AND a.status <> 'CANCELLED'
		  AND b.status <> 'cancelled'
		  AND b.event_date BETWEEN $2::date AND $3::date`,
		chefID, from.Format("2006-01-02"), to.Format("2006-01-02")).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count commitments: %w", err)
	}
	return count, nil
}

// GetChefProfile returns tier and performance metrics. Missing metrics stay nil.
func (r *Repository) GetChefProfile(ctx context.Context, chefID uuid.UUID) (recommendation.Profile, error) {
	var p recommendation.Profile
	var tier string
	err := r.pool.QueryRow(ctx, `
		SELECT c.id, c.name, c.tier,
			m.avg_rating::float8, m.on_time_pct::float8, m.prep_pct::float8
		FROM chefs c
		LEFT JOIN chef_metrics m ON m.chef_id = c.id
		WHERE c.id = $1`, chefID).Scan(&p.ID, &p.Name, &tier, &p.AvgRating, &p.OnTimePct, &p.PrepPct)
	if errors.Is(err, pgx.ErrNoRows) {
		return recommendation.Profile{}, apperr.NotFound(chefNotFoundMsg)
	}
	if err != nil {
		return recommendation.Profile{}, fmt.Errorf("load chef profile: %w", err)
	}
	p.Tier = recommendation.Tier(tier)
	return p, nil
}

// ListActiveChefIDs returns the coarse-eligible candidate pool.
func (r *Repository) ListActiveChefIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM chefs WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active chefs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan active chefs: %w", err)
	}
	return ids, nil
}

var (
	_ recommendation.AvailabilityChecker = (*Repository)(nil)
	_ recommendation.ProfileProvider     = (*Repository)(nil)
	_ recommendation.WorkloadCounter     = (*Repository)(nil)
)
