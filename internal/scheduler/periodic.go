package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const defaultCycleSpec = "@every 5m"

// Periodic enqueues the SLA cycle task on its cron spec.
type Periodic struct {
	scheduler *asynq.Scheduler
	spec      string
	queue     string
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	spec := cfg.GetSLACycleSpec()
	if spec == "" {
		spec = defaultCycleSpec
	}

	p := &Periodic{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{
			LogLevel: asynq.WarnLevel,
		}),
		spec:  spec,
		queue: queueName(cfg),
		log:   log,
	}

	if _, err := p.scheduler.Register(p.spec, NewSLACycleTask(), asynq.Queue(p.queue), asynq.Unique(cycleUniqueTTL(p.spec))); err != nil {
		return nil, fmt.Errorf("register sla cycle %q: %w", p.spec, err)
	}
	return p, nil
}

// Run starts the scheduler and stops it when ctx is done.
func (p *Periodic) Run(ctx context.Context) error {
	if err := p.scheduler.Start(); err != nil {
		return err
	}
	p.log.Info("sla cycle scheduled", "spec", p.spec, "queue", p.queue)
	<-ctx.Done()
	p.scheduler.Shutdown()
	return nil
}

// cycleUniqueTTL keeps a slow cycle from piling up behind itself: one
// interval for "@every" specs, a minute otherwise.
func cycleUniqueTTL(spec string) time.Duration {
	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(rest)); err == nil && d >= time.Second {
			return d
		}
	}
	return time.Minute
}
