package sla

import (
	"fmt"
	"strings"
	"time"

	"fulfillment_backend/platform/apperr"
)

const timeOfDayLayout = "15:04"

// EventDateTime combines a booking date with its optional "HH:MM" time of day
// in loc. A blank time means midnight.
func EventDateTime(date time.Time, timeOfDay string, loc *time.Location) (time.Time, error) {
	if date.IsZero() {
		return time.Time{}, apperr.Incomplete("booking has no event date")
	}
	if loc == nil {
		loc = time.UTC
	}

	offset, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(offset), nil
}

func parseTimeOfDay(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	// Accept "HH:MM:SS" from TIME columns as well.
	if len(trimmed) == len("15:04:05") {
		trimmed = trimmed[:len(timeOfDayLayout)]
	}
	parsed, err := time.Parse(timeOfDayLayout, trimmed)
	if err != nil {
		return 0, apperr.Incomplete(fmt.Sprintf("invalid event time %q", value))
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}

// ClockWindow is a daily wall-clock interval such as quiet hours.
// Start after End wraps past midnight. Start == End is an empty window.
type ClockWindow struct {
	Start time.Duration
	End   time.Duration
}

// ParseClockWindow parses "HH:MM" bounds.
func ParseClockWindow(start, end string) (ClockWindow, error) {
	s, err := parseTimeOfDay(start)
	if err != nil {
		return ClockWindow{}, fmt.Errorf("window start: %w", err)
	}
	e, err := parseTimeOfDay(end)
	if err != nil {
		return ClockWindow{}, fmt.Errorf("window end: %w", err)
	}
	return ClockWindow{Start: s, End: e}, nil
}

// Contains reports whether t falls inside the window, using t's own location.
func (w ClockWindow) Contains(t time.Time) bool {
	if w.Start == w.End {
		return false
	}
	sinceMidnight := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	if w.Start < w.End {
		return sinceMidnight >= w.Start && sinceMidnight < w.End
	}
	return sinceMidnight >= w.Start || sinceMidnight < w.End
}

// NextEnd returns the first moment at or after t when the window closes.
// Only meaningful when Contains(t) is true.
func (w ClockWindow) NextEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, t.Location()).Add(w.End)
	if end.Before(t) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

// DayKey formats t's calendar day in loc, used for daily counters.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}
