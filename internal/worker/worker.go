package worker

import (
	"context"
	"log"
	"time"

	"shortage-service/internal/broker"
	"shortage-service/internal/models"
	"shortage-service/internal/service"
)

// RefreshWorker consumes refresh-requested events and runs the
// reconciliation they ask for.
type RefreshWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	refresh      *service.RefreshService
}

// NewRefreshWorker creates a new refresh worker.
func NewRefreshWorker(
	consumer *broker.Consumer,
	refresh *service.RefreshService,
) *RefreshWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnRefreshRequested(func(ctx context.Context, event *models.RefreshRequestedEvent) error {
		log.Printf("Refresh requested: scope=%s requested_by=%s", event.Scope, event.RequestedBy)
		return refresh.RefreshScope(ctx, event.Scope)
	})

	return &RefreshWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		refresh:      refresh,
	}
}

// Start starts the worker
func (w *RefreshWorker) Start(ctx context.Context) error {
	log.Println("Starting refresh worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *RefreshWorker) Stop() error {
	log.Println("Stopping refresh worker...")
	return w.consumer.Close()
}

// RefreshRequester publishes refresh-requested events.
type RefreshRequester interface {
	PublishRefreshRequested(ctx context.Context, scope, requestedBy string) error
}

// Scheduler periodically requests a full refresh of both sources.
type Scheduler struct {
	publisher RefreshRequester
	interval  time.Duration
}

// NewScheduler creates a new refresh scheduler.
func NewScheduler(publisher RefreshRequester, interval time.Duration) *Scheduler {
	return &Scheduler{
		publisher: publisher,
		interval:  interval,
	}
}

// Start runs the schedule loop until the context is cancelled. One
// refresh is requested immediately so a fresh deployment does not wait
// a full interval for data.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Printf("Starting refresh scheduler with interval %s...", s.interval)

	if err := s.publisher.PublishRefreshRequested(ctx, models.RefreshScopeAll, "scheduler"); err != nil {
		log.Printf("Failed to publish initial refresh request: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping refresh scheduler...")
			return ctx.Err()
		case <-ticker.C:
			if err := s.publisher.PublishRefreshRequested(ctx, models.RefreshScopeAll, "scheduler"); err != nil {
				log.Printf("Failed to publish scheduled refresh request: %v", err)
			}
		}
	}
}
