package repository

import (
	"strings"
	"time"
)

// commitmentBlock is how long an event occupies a chef around its start time.
const commitmentBlock = 4 * time.Hour

// Override is a per-date availability exception. Empty Start/End cover the whole day.
type Override struct {
	Available bool
	Start     string
	End       string
}

// SlotFree decides availability for a slot time ("HH:MM", or empty for the
// whole day) given the date's overrides and the start times of existing
// commitments on that date.
func SlotFree(slotTime string, overrides []Override, commitments []string) bool {
	slot, hasSlot := clock(slotTime)

	for _, o := range overrides {
		if o.Available {
			continue
		}
		start, okStart := clock(o.Start)
		end, okEnd := clock(o.End)
		if !hasSlot || !okStart || !okEnd {
			return false
		}
		if slot < end && slot+commitmentBlock > start {
			return false
		}
	}

	for _, c := range commitments {
		at, ok := clock(c)
		if !hasSlot || !ok {
			return false
		}
		if absDuration(slot-at) < commitmentBlock {
			return false
		}
	}
	return true
}

func clock(value string) (time.Duration, bool) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) > len("15:04") {
		trimmed = trimmed[:len("15:04")]
	}
	t, err := time.Parse("15:04", trimmed)
	if err != nil {
		return 0, false
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
