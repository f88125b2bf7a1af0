// Package recommendation ranks available chefs for a booking slot.
// It only recommends; assignment stays a human decision.
package recommendation

import (
	"math"
	"strings"
)

// Tier is the ordinal chef ranking.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
	TierElite    Tier = "elite"
)

const maxTierOrdinal = 3

// Ordinal returns 1..3 for known tiers and 0 otherwise.
func (t Tier) Ordinal() int {
	switch Tier(strings.ToLower(string(t))) {
	case TierStandard:
		return 1
	case TierPro:
		return 2
	case TierElite:
		return 3
	default:
		return 0
	}
}

// Composite weights.
const (
	tierWeight        = 0.40
	performanceWeight = 0.40
	workloadWeight    = 0.20
)

// DefaultPenaltyPerJob is the workload points deducted per committed job.
const DefaultPenaltyPerJob = 5.0

// ScoreInput carries the scoring facts for one chef. Nil metrics mean unknown.
type ScoreInput struct {
	Tier          Tier
	AvgRating     *float64
	OnTimePct     *float64
	PrepPct       *float64
	WorkloadCount int
}

// Breakdown exposes the sub-scores behind a composite.
type Breakdown struct {
	Tier        float64 `json:"tier"`
	Performance float64 `json:"performance"`
	Workload    float64 `json:"workload"`
}

// Score is the scorer output. Raw is used for ordering, Display for presentation.
type Score struct {
	Raw       float64
	Display   int
	Breakdown Breakdown
}

// Scorer computes composite scores. The zero value uses DefaultPenaltyPerJob.
type Scorer struct {
	PenaltyPerJob float64
}

// Score computes the 0..100 composite. Missing metrics contribute nothing.
func (s Scorer) Score(in ScoreInput) Score {
	penalty := s.PenaltyPerJob
	if penalty <= 0 {
		penalty = DefaultPenaltyPerJob
	}

	b := Breakdown{
		Tier:        TierScore(in.Tier),
		Performance: PerformanceScore(in.AvgRating, in.OnTimePct, in.PrepPct),
		Workload:    WorkloadScore(in.WorkloadCount, penalty),
	}
	raw := tierWeight*b.Tier + performanceWeight*b.Performance + workloadWeight*b.Workload

	return Score{
		Raw:       raw,
		Display:   int(math.Round(raw)),
		Breakdown: b,
	}
}

// TierScore scales the tier ordinal linearly to 0..100.
func TierScore(t Tier) float64 {
	return float64(t.Ordinal()) / maxTierOrdinal * 100
}

// PerformanceScore weighs rating (40), on-time (30) and prep completion (30).
func PerformanceScore(rating, onTimePct, prepPct *float64) float64 {
	score := 0.0
	if rating != nil {
		score += clamp(*rating, 0, 5) / 5 * 40
	}
	if onTimePct != nil {
		score += clamp(*onTimePct, 0, 100) / 100 * 30
	}
	if prepPct != nil {
		score += clamp(*prepPct, 0, 100) / 100 * 30
	}
	return score
}

// WorkloadScore deducts penalty points per committed job, clamped to 0..100.
func WorkloadScore(jobs int, penalty float64) float64 {
	if jobs < 0 {
		jobs = 0
	}
	return clamp(100-penalty*float64(jobs), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
