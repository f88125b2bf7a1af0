// Command sla-evaluate runs one SLA evaluation cycle in-process and prints
// the cycle report. With -booking it evaluates a single booking; with -dry-run
// it only prints evaluations and sends nothing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment_backend/internal/alerts"
	bookingrepo "fulfillment_backend/internal/bookings/repository"
	"fulfillment_backend/internal/events"
	"fulfillment_backend/internal/sla"
	"fulfillment_backend/internal/sla/engine"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/db"
	"fulfillment_backend/platform/logger"

	"github.com/google/uuid"
)

type dryRunLine struct {
	BookingID   uuid.UUID      `json:"bookingId"`
	Status      sla.Status     `json:"status,omitempty"`
	Breaches    []sla.Detected `json:"breaches,omitempty"`
	NewBreaches []sla.Detected `json:"newBreaches,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func main() {
	bookingFlag := flag.String("booking", "", "evaluate only this booking id")
	atFlag := flag.String("at", "", "evaluation instant (RFC3339); defaults to now")
	dryRun := flag.Bool("dry-run", false, "print evaluations without alerting or saving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	now := time.Now()
	if *atFlag != "" {
		now, err = time.Parse(time.RFC3339, *atFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid -at:", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *bookingFlag, now, *dryRun); err != nil {
		log.Error("sla evaluation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, bookingArg string, now time.Time, dryRun bool) error {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	store := bookingrepo.New(pool)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	var only []uuid.UUID
	if bookingArg != "" {
		id, err := uuid.Parse(bookingArg)
		if err != nil {
			return fmt.Errorf("invalid -booking: %w", err)
		}
		only = []uuid.UUID{id}
	}

	if dryRun {
		policy := sla.PolicyFromConfig(cfg)
		ids := only
		if ids == nil {
			local := now.In(policy.Location)
			y, m, d := local.Date()
			ids, err = store.ListOpenBookingIDs(ctx, time.Date(y, m, d, 0, 0, 0, 0, policy.Location))
			if err != nil {
				return err
			}
		}
		for _, id := range ids {
			line := dryRunLine{BookingID: id}
			b, err := store.GetForSLA(ctx, id)
			if err == nil {
				var eval sla.Evaluation
				eval, err = sla.Evaluate(b, policy, now)
				line.Status, line.Breaches, line.NewBreaches = eval.Status, eval.Breaches, eval.NewBreaches
			}
			if err != nil {
				line.Error = err.Error()
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
		return nil
	}

	redisClient, err := db.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	bus := events.NewInMemoryBus(log)
	defer bus.Wait()
	alertRepo := alerts.NewRepository(pool)
	events.Register(bus, alerts.NewAuditLog(alertRepo, log))

	slaEngine, err := engine.Build(cfg, store, alertRepo, redisClient, bus, log)
	if err != nil {
		return err
	}

	if only != nil {
		return enc.Encode(slaEngine.ProcessBooking(ctx, only[0], now))
	}

	report, err := slaEngine.RunCycle(ctx, now)
	if err != nil {
		return err
	}
	return enc.Encode(report)
}
