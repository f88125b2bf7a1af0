package engine

import (
	"errors"

	"fulfillment_backend/internal/alerts"
	"fulfillment_backend/internal/events"
	"fulfillment_backend/internal/sla"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/lock"
	"fulfillment_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Config is the configuration Build reads.
type Config interface {
	config.SLAConfig
	config.AlertConfig
	config.SMSConfig
	config.SMTPConfig
}

// Build wires an engine with the redis alert ledger, redis booking locks and
// every configured alert channel.
func Build(cfg Config, store BookingStore, recipients RecipientDirectory, client redis.UniversalClient, bus events.Bus, log *logger.Logger) (*Engine, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}

	policy := sla.PolicyFromConfig(cfg)
	alertPolicy, err := alerts.PolicyFromConfig(cfg, policy.Location)
	if err != nil {
		return nil, err
	}

	transports := alerts.NewTransports(cfg, cfg, log)
	if len(transports) == 0 {
		log.Warn("no alert channel configured; SLA alerts will stay pending")
	}

	dispatcher := alerts.NewDispatcher(alerts.NewRedisStore(client, ""), alertPolicy, log, transports...)
	opts := []Option{WithConcurrency(cfg.GetCycleConcurrency())}
	if bus != nil {
		opts = append(opts, WithEventBus(bus))
	}
	return New(store, recipients, dispatcher, lock.NewRedisLocker(client, ""), policy, log, opts...), nil
}
