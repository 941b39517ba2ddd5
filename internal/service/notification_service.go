package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/portfolio-service/internal/events"
	"github.com/spec-kit/portfolio-service/internal/observability"
)

// NotificationService turns ownership events into log lines and counters.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to ownership events and returns the subscribed types.
func (n *NotificationService) RegisterHandlers() []events.EventType {
	if n.dispatcher == nil {
		return nil
	}
	handlers := []struct {
		eventType events.EventType
		handle    events.EventHandler
	}{
		{events.EventOwnershipChanged, n.handleOwnershipChanged},
		{events.EventEntityClassified, n.handleEntityClassified},
		{events.EventBatchCompleted, n.handleBatchCompleted},
	}
	subscribed := make([]events.EventType, 0, len(handlers))
	for _, h := range handlers {
		n.dispatcher.Subscribe(h.eventType, h.handle)
		subscribed = append(subscribed, h.eventType)
	}
	return subscribed
}

func (n *NotificationService) handleOwnershipChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OwnershipChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	fields := []zap.Field{
		zap.String("entity_id", event.EntityID.String()),
		zap.Int64("record_id", payload.RecordID),
		zap.String("action", payload.Action),
		zap.String("new_owner_id", payload.NewOwnerID.String()),
		zap.String("assigned_by", event.ActorID.String()),
	}
	if payload.PrevOwnerID != nil {
		fields = append(fields, zap.String("prev_owner_id", payload.PrevOwnerID.String()))
	}
	n.logger.Debug("OwnershipChanged", fields...)
	return nil
}

func (n *NotificationService) handleEntityClassified(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EntityClassifiedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.metrics.RecordClassification()
	n.logger.Debug("EntityClassified",
		zap.String("entity_id", event.EntityID.String()),
		zap.Int64("record_id", payload.RecordID),
		zap.String("classification_id", payload.ClassificationID.String()))
	return nil
}

func (n *NotificationService) handleBatchCompleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.BatchCompletedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	for action, count := range payload.Actions {
		n.metrics.RecordAssignments(action, count)
	}
	if payload.NoOps > 0 {
		n.metrics.RecordAssignments("noop", payload.NoOps)
	}
	n.logger.Debug("BatchCompleted",
		zap.String("batch_id", payload.BatchID.String()),
		zap.Any("actions", payload.Actions),
		zap.Int("no_ops", payload.NoOps))
	return nil
}
