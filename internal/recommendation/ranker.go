package recommendation

import (
	"bytes"
	"context"
	"sort"
	"time"

	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultLimit is the maximum number of recommendations returned.
	DefaultLimit = 3
	// DefaultHorizon is the workload look-ahead from the target date.
	DefaultHorizon = 30 * 24 * time.Hour

	defaultConcurrency = 8
)

// Warnings returned alongside an empty recommendation list.
const (
	WarningNoCandidates  = "no candidates supplied"
	WarningNoneAvailable = "no candidate is available for this slot; an operator override is required"
)

// Slot is the scheduled date and optional "HH:MM" time of a booking.
type Slot struct {
	Date time.Time
	Time string
}

// Profile is what the chef directory knows about a candidate.
type Profile struct {
	ID        uuid.UUID
	Name      string
	Tier      Tier
	AvgRating *float64
	OnTimePct *float64
	PrepPct   *float64
}

// AvailabilityChecker answers whether a chef can take the slot.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, chefID uuid.UUID, slot Slot) (bool, error)
}

// ProfileProvider supplies tier and performance metrics.
type ProfileProvider interface {
	GetChefProfile(ctx context.Context, chefID uuid.UUID) (Profile, error)
}

// WorkloadCounter counts a chef's commitments with event dates in [from, to].
type WorkloadCounter interface {
	CountCommitments(ctx context.Context, chefID uuid.UUID, from, to time.Time) (int, error)
}

// Recommendation is one ranked candidate.
type Recommendation struct {
	ChefID    uuid.UUID `json:"chefId"`
	Name      string    `json:"name"`
	Tier      Tier      `json:"tier"`
	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	AvgRating *float64  `json:"avgRating,omitempty"`
	OnTimePct *float64  `json:"onTimePct,omitempty"`
	PrepPct   *float64  `json:"prepPct,omitempty"`
	Workload  int       `json:"workload"`

	raw float64
}

// Result is the ranker output. Warning is set only when Recommendations is empty.
type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	Warning         string           `json:"warning,omitempty"`
	// Excluded counts candidates dropped because a provider failed or data was missing.
	Excluded int `json:"excluded"`
}

// Options tunes the ranker.
type Options struct {
	Limit         int
	Horizon       time.Duration
	PenaltyPerJob float64
	Concurrency   int
}

// Ranker filters, scores and orders candidates. It performs no writes.
type Ranker struct {
	availability AvailabilityChecker
	profiles     ProfileProvider
	workload     WorkloadCounter
	scorer       Scorer
	opts         Options
	log          *logger.Logger
}

// NewRanker creates a ranker. Zero options take the defaults.
func NewRanker(availability AvailabilityChecker, profiles ProfileProvider, workload WorkloadCounter, opts Options, log *logger.Logger) *Ranker {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Horizon <= 0 {
		opts.Horizon = DefaultHorizon
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ranker{
		availability: availability,
		profiles:     profiles,
		workload:     workload,
		scorer:       Scorer{PenaltyPerJob: opts.PenaltyPerJob},
		opts:         opts,
		log:          log,
	}
}

// Recommend returns up to Limit available candidates ordered by descending
// score, ties broken by ascending id. Provider failures exclude the affected
// candidate; only context cancellation is returned as an error.
func (r *Ranker) Recommend(ctx context.Context, slot Slot, pool []uuid.UUID) (Result, error) {
	candidates := dedupe(pool)
	if len(candidates) == 0 {
		return Result{Recommendations: []Recommendation{}, Warning: WarningNoCandidates}, nil
	}
	if slot.Date.IsZero() {
		return Result{}, apperr.Validation("event date is required")
	}

	from := truncateDay(slot.Date)
	to := from.Add(r.opts.Horizon)

	type outcome struct {
		rec      Recommendation
		ok       bool
		excluded bool
	}
	outcomes := make([]outcome, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, chefID := range candidates {
		g.Go(func() error {
			rec, ok, err := r.evaluate(gctx, chefID, slot, from, to)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.log.ProviderUnavailable("chef_directory", chefID.String(), err)
				outcomes[i] = outcome{excluded: true}
				return nil
			}
			outcomes[i] = outcome{rec: rec, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	result := Result{Recommendations: make([]Recommendation, 0, r.opts.Limit)}
	ranked := make([]Recommendation, 0, len(candidates))
	for _, o := range outcomes {
		if o.excluded {
			result.Excluded++
		}
		if o.ok {
			ranked = append(ranked, o.rec)
		}
	}

	sortRecommendations(ranked)
	if len(ranked) > r.opts.Limit {
		ranked = ranked[:r.opts.Limit]
	}
	result.Recommendations = append(result.Recommendations, ranked...)
	if len(result.Recommendations) == 0 {
		result.Warning = WarningNoneAvailable
	}
	return result, nil
}

// evaluate returns ok=false for an unavailable chef and an error when a provider fails.
func (r *Ranker) evaluate(ctx context.Context, chefID uuid.UUID, slot Slot, from, to time.Time) (Recommendation, bool, error) {
	available, err := r.availability.IsAvailable(ctx, chefID, slot)
	if err != nil {
		return Recommendation{}, false, err
	}
	if !available {
		return Recommendation{}, false, nil
	}

	profile, err := r.profiles.GetChefProfile(ctx, chefID)
	if err != nil {
		return Recommendation{}, false, err
	}
	jobs, err := r.workload.CountCommitments(ctx, chefID, from, to)
	if err != nil {
		return Recommendation{}, false, err
	}

	score := r.scorer.Score(ScoreInput{
		Tier:          profile.Tier,
		AvgRating:     profile.AvgRating,
		OnTimePct:     profile.OnTimePct,
		PrepPct:       profile.PrepPct,
		WorkloadCount: jobs,
	})

	return Recommendation{
		ChefID:    chefID,
		Name:      profile.Name,
		Tier:      profile.Tier,
		Score:     score.Display,
		Breakdown: score.Breakdown,
		AvgRating: profile.AvgRating,
		OnTimePct: profile.OnTimePct,
		PrepPct:   profile.PrepPct,
		Workload:  jobs,
		raw:       score.Raw,
	}, true, nil
}

func sortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].raw != recs[j].raw {
			return recs[i].raw > recs[j].raw
		}
		return bytes.Compare(recs[i].ChefID[:], recs[j].ChefID[:]) < 0
	})
}

func dedupe(pool []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(pool))
	out := make([]uuid.UUID, 0, len(pool))
	for _, id := range pool {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
