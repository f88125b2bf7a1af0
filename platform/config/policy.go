package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the optional YAML overlay for SLA, alert and scoring knobs.
// Only fields present in the file override the environment.
//
//	sla:
//	  assignmentWindow: 24h
//	  escalationWindow: 4h
//	alerts:
//	  quietHours: {start: "22:00", end: "07:00"}
//	  dailyCap: 20
//	scoring:
//	  workloadPenaltyPerJob: 5
type PolicyFile struct {
	SLA struct {
		AssignmentWindow   *Duration `yaml:"assignmentWindow"`
		ConfirmationWindow *Duration `yaml:"confirmationWindow"`
		PrepLead           *Duration `yaml:"prepLead"`
		ArrivalGrace       *Duration `yaml:"arrivalGrace"`
		EscalationWindow   *Duration `yaml:"escalationWindow"`
		Timezone           *string   `yaml:"timezone"`
	} `yaml:"sla"`
	Alerts struct {
		QuietHours *struct {
			Start string `yaml:"start"`
			End   string `yaml:"end"`
		} `yaml:"quietHours"`
		DailyCap    *int      `yaml:"dailyCap"`
		DedupWindow *Duration `yaml:"dedupWindow"`
	} `yaml:"alerts"`
	Scoring struct {
		WorkloadPenaltyPerJob *float64  `yaml:"workloadPenaltyPerJob"`
		WorkloadHorizon       *Duration `yaml:"workloadHorizon"`
		Limit                 *int      `yaml:"limit"`
	} `yaml:"scoring"`
}

// Duration decodes Go duration strings ("90m", "24h") from YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// LoadPolicyFile reads and decodes a policy overlay.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a policy overlay from raw YAML.
func ParsePolicy(data []byte) (*PolicyFile, error) {
	var policy PolicyFile
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("decode policy file: %w", err)
	}
	return &policy, nil
}

// ApplyTo copies every set field onto cfg.
func (p *PolicyFile) ApplyTo(cfg *Config) {
	if p == nil || cfg == nil {
		return
	}
	setDuration(&cfg.AssignmentWindow, p.SLA.AssignmentWindow)
	setDuration(&cfg.ConfirmationWindow, p.SLA.ConfirmationWindow)
	setDuration(&cfg.PrepLead, p.SLA.PrepLead)
	setDuration(&cfg.ArrivalGrace, p.SLA.ArrivalGrace)
	setDuration(&cfg.EscalationWindow, p.SLA.EscalationWindow)
	if p.SLA.Timezone != nil {
		cfg.SLATimezone = *p.SLA.Timezone
	}

	if p.Alerts.QuietHours != nil {
		cfg.QuietHoursStart = p.Alerts.QuietHours.Start
		cfg.QuietHoursEnd = p.Alerts.QuietHours.End
	}
	if p.Alerts.DailyCap != nil {
		cfg.DailyAlertCap = *p.Alerts.DailyCap
	}
	setDuration(&cfg.DedupWindow, p.Alerts.DedupWindow)

	if p.Scoring.WorkloadPenaltyPerJob != nil {
		cfg.WorkloadPenaltyPerJob = *p.Scoring.WorkloadPenaltyPerJob
	}
	setDuration(&cfg.WorkloadHorizon, p.Scoring.WorkloadHorizon)
	if p.Scoring.Limit != nil {
		cfg.RecommendationLimit = *p.Scoring.Limit
	}
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
