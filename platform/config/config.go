// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides the shared redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq worker and periodic scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSLACycleSpec() string
}

// SLAConfig provides the deadline windows used by the SLA engine.
type SLAConfig interface {
	GetAssignmentWindow() time.Duration
	GetConfirmationWindow() time.Duration
	GetPrepLead() time.Duration
	GetArrivalGrace() time.Duration
	GetEscalationWindow() time.Duration
	GetSLALocation() *time.Location
	GetCycleConcurrency() int
}

// AlertConfig provides the suppression settings for the alert dispatcher.
type AlertConfig interface {
	GetQuietHoursStart() string
	GetQuietHoursEnd() string
	GetDailyAlertCap() int
	GetDedupWindow() time.Duration
	GetAlertSendRate() float64
}

// RecommendationConfig provides the scorer tunables.
type RecommendationConfig interface {
	GetWorkloadPenaltyPerJob() float64
	GetWorkloadHorizon() time.Duration
	GetRecommendationLimit() int
}

// SMSConfig provides settings for the SMS gateway channel.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	GetSMSSenderID() string
	GetPhoneDefaultRegion() string
}

// SMTPConfig provides settings for the email channel.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	SLACycleSpec          string
	CycleConcurrency      int
	AssignmentWindow      time.Duration
	ConfirmationWindow    time.Duration
	PrepLead              time.Duration
	ArrivalGrace          time.Duration
	EscalationWindow      time.Duration
	SLATimezone           string
	QuietHoursStart       string
	QuietHoursEnd         string
	DailyAlertCap         int
	DedupWindow           time.Duration
	AlertSendRate         float64
	WorkloadPenaltyPerJob float64
	WorkloadHorizon       time.Duration
	RecommendationLimit   int
	SMSGatewayURL         string
	SMSGatewayKey         string
	SMSSenderID           string
	PhoneDefaultRegion    string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
	PolicyFile            string

	location *time.Location
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RedisConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetSLACycleSpec() string    { return c.SLACycleSpec }
func (c *Config) GetCycleConcurrency() int   { return c.CycleConcurrency }

// SLAConfig implementation
func (c *Config) GetAssignmentWindow() time.Duration   { return c.AssignmentWindow }
func (c *Config) GetConfirmationWindow() time.Duration { return c.ConfirmationWindow }
func (c *Config) GetPrepLead() time.Duration           { return c.PrepLead }
func (c *Config) GetArrivalGrace() time.Duration       { return c.ArrivalGrace }
func (c *Config) GetEscalationWindow() time.Duration   { return c.EscalationWindow }
func (c *Config) GetSLALocation() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// AlertConfig implementation
func (c *Config) GetQuietHoursStart() string      { return c.QuietHoursStart }
func (c *Config) GetQuietHoursEnd() string        { return c.QuietHoursEnd }
func (c *Config) GetDailyAlertCap() int           { return c.DailyAlertCap }
func (c *Config) GetDedupWindow() time.Duration   { return c.DedupWindow }
func (c *Config) GetAlertSendRate() float64       { return c.AlertSendRate }

// RecommendationConfig implementation
func (c *Config) GetWorkloadPenaltyPerJob() float64    { return c.WorkloadPenaltyPerJob }
func (c *Config) GetWorkloadHorizon() time.Duration    { return c.WorkloadHorizon }
func (c *Config) GetRecommendationLimit() int          { return c.RecommendationLimit }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string      { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string      { return c.SMSGatewayKey }
func (c *Config) GetSMSSenderID() string        { return c.SMSSenderID }
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SLACycleSpec:          getEnv("SLA_CYCLE_SPEC", "@every 5m"),
		CycleConcurrency:      mustInt(getEnv("SLA_CYCLE_CONCURRENCY", "8")),
		AssignmentWindow:      mustDuration(getEnv("SLA_ASSIGNMENT_WINDOW", "24h")),
		ConfirmationWindow:    mustDuration(getEnv("SLA_CONFIRMATION_WINDOW", "48h")),
		PrepLead:              mustDuration(getEnv("SLA_PREP_LEAD", "24h")),
		ArrivalGrace:          mustDuration(getEnv("SLA_ARRIVAL_GRACE", "15m")),
		EscalationWindow:      mustDuration(getEnv("SLA_ESCALATION_WINDOW", "4h")),
		SLATimezone:           getEnv("SLA_TIMEZONE", "UTC"),
		QuietHoursStart:       getEnv("ALERT_QUIET_HOURS_START", "22:00"),
		QuietHoursEnd:         getEnv("ALERT_QUIET_HOURS_END", "07:00"),
		DailyAlertCap:         mustInt(getEnv("ALERT_DAILY_CAP", "20")),
		DedupWindow:           mustDuration(getEnv("ALERT_DEDUP_WINDOW", "24h")),
		AlertSendRate:         mustFloat(getEnv("ALERT_SEND_RATE", "5")),
		WorkloadPenaltyPerJob: mustFloat(getEnv("RECOMMENDATION_WORKLOAD_PENALTY", "5")),
		WorkloadHorizon:       mustDuration(getEnv("RECOMMENDATION_WORKLOAD_HORIZON", "720h")),
		RecommendationLimit:   mustInt(getEnv("RECOMMENDATION_LIMIT", "3")),
		SMSGatewayURL:         getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:         getEnv("SMS_GATEWAY_KEY", ""),
		SMSSenderID:           getEnv("SMS_SENDER_ID", "ChefOps"),
		PhoneDefaultRegion:    getEnv("PHONE_DEFAULT_REGION", "US"),
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "Chef Operations"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
		PolicyFile:            getEnv("SLA_POLICY_FILE", ""),
	}

	if cfg.PolicyFile != "" {
		policy, err := LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		policy.ApplyTo(cfg)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// finalize fills zero values with defaults and resolves the SLA timezone.
func (c *Config) finalize() error {
	if c.AssignmentWindow <= 0 {
		c.AssignmentWindow = 24 * time.Hour
	}
	if c.ConfirmationWindow <= 0 {
		c.ConfirmationWindow = 48 * time.Hour
	}
	if c.PrepLead <= 0 {
		c.PrepLead = 24 * time.Hour
	}
	if c.ArrivalGrace < 0 {
		c.ArrivalGrace = 15 * time.Minute
	}
	if c.EscalationWindow <= 0 {
		c.EscalationWindow = 4 * time.Hour
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 24 * time.Hour
	}
	if c.DailyAlertCap <= 0 {
		c.DailyAlertCap = 20
	}
	if c.RecommendationLimit <= 0 {
		c.RecommendationLimit = 3
	}
	if c.WorkloadHorizon <= 0 {
		c.WorkloadHorizon = 30 * 24 * time.Hour
	}

	loc, err := time.LoadLocation(c.SLATimezone)
	if err != nil {
		return fmt.Errorf("invalid SLA_TIMEZONE %q: %w", c.SLATimezone, err)
	}
	c.location = loc
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
