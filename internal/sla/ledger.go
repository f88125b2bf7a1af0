package sla

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Ledger is a booking's active breach history, at most one entry per type.
type Ledger []Breach

// Has reports whether the ledger holds an entry of type t.
func (l Ledger) Has(t BreachType) bool {
	_, ok := l.Find(t)
	return ok
}

// Find returns the entry of type t.
func (l Ledger) Find(t BreachType) (Breach, bool) {
	for _, b := range l {
		if b.Type == t {
			return b, true
		}
	}
	return Breach{}, false
}

// Types lists the breach types in ledger order.
func (l Ledger) Types() []BreachType {
	out := make([]BreachType, 0, len(l))
	for _, b := range l {
		out = append(out, b.Type)
	}
	return out
}

// Clone deep-copies the ledger including timestamp pointers.
func (l Ledger) Clone() Ledger {
	if l == nil {
		return nil
	}
	out := make(Ledger, len(l))
	for i, b := range l {
		out[i] = Breach{
			Type:        b.Type,
			BreachedAt:  b.BreachedAt,
			AlertedAt:   cloneTime(b.AlertedAt),
			NotifiedAt:  cloneTime(b.NotifiedAt),
			EscalatedAt: cloneTime(b.EscalatedAt),
		}
	}
	return out
}

// Update applies fn to the entry of type t, if present.
func (l Ledger) Update(t BreachType, fn func(*Breach)) {
	for i := range l {
		if l[i].Type == t {
			fn(&l[i])
			return
		}
	}
}

// Merge reconciles freshly detected breaches with history.
//
// Types still breached keep their alertedAt/notifiedAt/escalatedAt and only
// have the deadline refreshed. Newly breached types are inserted with
// alertedAt = now. Types that are no longer breached are dropped, so a later
// re-breach starts a fresh episode. Merging the same fresh set again is a no-op.
func Merge(history Ledger, fresh []Detected, now time.Time) Ledger {
	merged := make(Ledger, 0, len(fresh))
	seen := make(map[BreachType]bool, len(fresh))

	for _, d := range fresh {
		if !d.Type.Valid() || seen[d.Type] {
			continue
		}
		seen[d.Type] = true

		if existing, ok := history.Find(d.Type); ok {
			entry := Breach{
				Type:        d.Type,
				BreachedAt:  d.Deadline,
				AlertedAt:   cloneTime(existing.AlertedAt),
				NotifiedAt:  cloneTime(existing.NotifiedAt),
				EscalatedAt: cloneTime(existing.EscalatedAt),
			}
			if entry.AlertedAt == nil {
				entry.AlertedAt = timePtr(now)
			}
			merged = append(merged, entry)
			continue
		}

		merged = append(merged, Breach{
			Type:       d.Type,
			BreachedAt: d.Deadline,
			AlertedAt:  timePtr(now),
		})
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Type < merged[j].Type })
	return merged
}

// UnmarshalJSON decodes a persisted ledger, rejecting unknown or duplicated types.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var raw []Breach
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	seen := make(map[BreachType]bool, len(raw))
	for _, b := range raw {
		if seen[b.Type] {
			return fmt.Errorf("duplicate breach type %s in ledger", b.Type)
		}
		seen[b.Type] = true
	}
	*l = raw
	return nil
}

// MarshalJSON always encodes an array, never null.
func (l Ledger) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Breach(l))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
