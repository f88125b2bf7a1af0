package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	evaluateUniqueTTL = 10 * time.Minute
	evaluateTimeout   = 2 * time.Minute
	evaluateMaxRetry  = 3
)

type Client struct {
	client *asynq.Client
	queue  string
}

// BookingEnqueuer queues a single booking evaluation.
type BookingEnqueuer interface {
	// EnqueueBookingEvaluation reports false when the booking is already queued.
	EnqueueBookingEvaluation(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueueBookingEvaluation(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	if c == nil || c.client == nil {
		return false, errors.New("scheduler client not configured")
	}

	task, err := NewSLAEvaluateBookingTask(SLAEvaluateBookingPayload{BookingID: bookingID.String()})
	if err != nil {
		return false, err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.Unique(evaluateUniqueTTL),
		asynq.MaxRetry(evaluateMaxRetry),
		asynq.Timeout(evaluateTimeout),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	tlsConfig := opt.TLSConfig
	if tlsConfig != nil && tlsInsecure {
		tlsConfig = tlsConfig.Clone()
		tlsConfig.InsecureSkipVerify = true
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
