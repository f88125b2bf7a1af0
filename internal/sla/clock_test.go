package sla

import (
	"testing"
	"time"
)

func TestClockWindow_WrapsMidnight(t *testing.T) {
	w, err := ParseClockWindow("22:00", "07:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 3, 2, 21, 59, 0, 0, time.UTC), false},
		{time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC), false},
		{time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := w.Contains(tc.at); got != tc.want {
			t.Fatalf("Contains(%s) = %v, want %v", tc.at.Format("15:04"), got, tc.want)
		}
	}
}

func TestClockWindow_SameDayAndEmpty(t *testing.T) {
	w, err := ParseClockWindow("12:00", "13:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !w.Contains(time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected 12:30 inside window")
	}
	if w.Contains(time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected 13:30 outside window")
	}

	empty, err := ParseClockWindow("07:00", "07:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if empty.Contains(time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)) {
		t.Fatalf("equal bounds must be an empty window")
	}
}

func TestClockWindow_NextEnd(t *testing.T) {
	w, err := ParseClockWindow("22:00", "07:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	got := w.NextEnd(time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC))
	want := time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}

	got = w.NextEnd(time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC))
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestParseClockWindow_RejectsGarbage(t *testing.T) {
	if _, err := ParseClockWindow("25:99", "07:00"); err == nil {
		t.Fatalf("expected error for invalid start")
	}
}

func TestEventDateTime_AcceptsSeconds(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	got, err := EventDateTime(date, "18:30:00", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDayKey(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	if got := DayKey(at, loc); got != "2026-03-03" {
		t.Fatalf("expected 2026-03-03, got %s", got)
	}
}
