package config

import (
	"testing"
	"time"
)

func TestParsePolicyOverridesOnlySetFields(t *testing.T) {
	policy, err := ParsePolicy([]byte(`
sla:
  escalationWindow: 2h
  timezone: Europe/Amsterdam
alerts:
  quietHours:
    start: "23:00"
    end: "06:30"
  dailyCap: 5
scoring:
  workloadPenaltyPerJob: 2.5
`))
	if err != nil {
		t.Fatalf("ParsePolicy returned error: %v", err)
	}

	cfg := &Config{
		AssignmentWindow: 24 * time.Hour,
		EscalationWindow: 4 * time.Hour,
		SLATimezone:      "UTC",
		QuietHoursStart:  "22:00",
		QuietHoursEnd:    "07:00",
		DailyAlertCap:    20,
	}
	policy.ApplyTo(cfg)

	if cfg.AssignmentWindow != 24*time.Hour {
		t.Fatalf("expected assignment window untouched, got %s", cfg.AssignmentWindow)
	}
	if cfg.EscalationWindow != 2*time.Hour {
		t.Fatalf("expected escalation window 2h, got %s", cfg.EscalationWindow)
	}
	if cfg.SLATimezone != "Europe/Amsterdam" {
		t.Fatalf("expected timezone override, got %q", cfg.SLATimezone)
	}
	if cfg.QuietHoursStart != "23:00" || cfg.QuietHoursEnd != "06:30" {
		t.Fatalf("unexpected quiet hours %s-%s", cfg.QuietHoursStart, cfg.QuietHoursEnd)
	}
	if cfg.DailyAlertCap != 5 {
		t.Fatalf("expected daily cap 5, got %d", cfg.DailyAlertCap)
	}
	if cfg.WorkloadPenaltyPerJob != 2.5 {
		t.Fatalf("expected workload penalty 2.5, got %v", cfg.WorkloadPenaltyPerJob)
	}
}

func TestParsePolicyRejectsBadDuration(t *testing.T) {
	if _, err := ParsePolicy([]byte("sla:\n  arrivalGrace: soon\n")); err == nil {
		t.Fatal("expected invalid duration to be rejected")
	}
}

func TestFinalizeAppliesDefaultsAndLocation(t *testing.T) {
	cfg := &Config{SLATimezone: "UTC"}
	if err := cfg.finalize(); err != nil {
		t.Fatalf("finalize returned error: %v", err)
	}
	if cfg.GetAssignmentWindow() != 24*time.Hour {
		t.Fatalf("expected default assignment window, got %s", cfg.GetAssignmentWindow())
	}
	if cfg.GetConfirmationWindow() != 48*time.Hour {
		t.Fatalf("expected default confirmation window, got %s", cfg.GetConfirmationWindow())
	}
	if cfg.GetEscalationWindow() != 4*time.Hour {
		t.Fatalf("expected default escalation window, got %s", cfg.GetEscalationWindow())
	}
	if cfg.GetRecommendationLimit() != 3 {
		t.Fatalf("expected default limit 3, got %d", cfg.GetRecommendationLimit())
	}
	if cfg.GetSLALocation() != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.GetSLALocation())
	}

	bad := &Config{SLATimezone: "Mars/Olympus"}
	if err := bad.finalize(); err == nil {
		t.Fatal("expected unknown timezone to fail")
	}
}
