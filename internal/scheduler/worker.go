package scheduler

import (
	"context"
	"fmt"
	"time"

	"fulfillment_backend/internal/sla/engine"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// SLAEngine is the part of the SLA engine the worker drives.
type SLAEngine interface {
	OpenBookingIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ProcessBooking(ctx context.Context, id uuid.UUID, now time.Time) engine.BookingReport
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	engine   SLAEngine
	enqueuer BookingEnqueuer
	now      func() time.Time
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, eng SLAEngine, enqueuer BookingEnqueuer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(eng, enqueuer, log)
	w.server = server
	return w, nil
}

func newWorker(eng SLAEngine, enqueuer BookingEnqueuer, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	w := &Worker{
		mux:      asynq.NewServeMux(),
		engine:   eng,
		enqueuer: enqueuer,
		now:      time.Now,
		log:      log,
	}
	w.mux.HandleFunc(TaskSLACycle, w.handleSLACycle)
	w.mux.HandleFunc(TaskSLAEvaluateBooking, w.handleEvaluateBooking)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleSLACycle queues one evaluation per open booking. Bookings already
// queued or running are left alone.
func (w *Worker) handleSLACycle(ctx context.Context, _ *asynq.Task) error {
	ids, err := w.engine.OpenBookingIDs(ctx, w.now())
	if err != nil {
		return fmt.Errorf("list open bookings: %w", err)
	}

	queued, duplicates := 0, 0
	for _, id := range ids {
		ok, err := w.enqueuer.EnqueueBookingEvaluation(ctx, id)
		if err != nil {
			return fmt.Errorf("enqueue booking %s: %w", id, err)
		}
		if ok {
			queued++
		} else {
			duplicates++
		}
	}

	w.log.Info("sla cycle queued", "bookings", len(ids), "queued", queued, "alreadyQueued", duplicates)
	return nil
}

// handleEvaluateBooking evaluates one booking at processing time. Only load
// and save failures are retried; alerts already sent are deduplicated.
func (w *Worker) handleEvaluateBooking(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSLAEvaluateBookingPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	id, err := uuid.Parse(payload.BookingID)
	if err != nil {
		return fmt.Errorf("%w: invalid booking id %q", asynq.SkipRetry, payload.BookingID)
	}

	report := w.engine.ProcessBooking(ctx, id, w.now())
	if report.Outcome == engine.OutcomeFailed {
		return fmt.Errorf("evaluate booking %s: %s", id, report.Reason)
	}
	return nil
}
