package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"shortage-service/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing refresh domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishRefreshRequested asks the worker to refresh the given scope
// ("stord", "shipbob" or "all"). Fire-and-forget from the caller's
// point of view.
func (ep *EventPublisher) PublishRefreshRequested(ctx context.Context, scope, requestedBy string) error {
	event := &models.RefreshRequestedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeRefreshRequested),
		Scope:       scope,
		RequestedBy: requestedBy,
	}
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("refresh-%s", scope), event)
}

// PublishReconcileCompleted publishes the outcome of one source merge.
func (ep *EventPublisher) PublishReconcileCompleted(ctx context.Context, event *models.ReconcileCompletedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeReconcileCompleted)
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("reconcile-%s", event.Source), event)
}

// PublishRefreshFailed publishes a failed refresh cycle for monitoring.
func (ep *EventPublisher) PublishRefreshFailed(ctx context.Context, source models.Source, reason string) error {
	event := &models.RefreshFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypeRefreshFailed),
		Source:    source,
		Reason:    reason,
	}
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("refresh-%s", source), event)
}

// EventHandler routes incoming refresh events
type EventHandler struct {
	onRefreshRequested func(context.Context, *models.RefreshRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnRefreshRequested registers a handler for RefreshRequested events
func (eh *EventHandler) OnRefreshRequested(handler func(context.Context, *models.RefreshRequestedEvent) error) {
	eh.onRefreshRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeRefreshRequested:
		if eh.onRefreshRequested != nil {
			var event models.RefreshRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RefreshRequested event: %w", err)
			}
			return eh.onRefreshRequested(ctx, &event)
		}

	default:
		// ReconcileCompleted/RefreshFailed are monitoring-only; nothing
		// in this service consumes them.
	}

	return nil
}
