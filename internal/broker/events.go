package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"dispatch-service/internal/models"
	"dispatch-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing dispatch events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishOrderConfirmed publishes OrderConfirmed event
func (ep *EventPublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishOrderCanceled publishes OrderCanceled event
func (ep *EventPublisher) PublishOrderCanceled(ctx context.Context, event *models.OrderCanceledEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishOrderStatus publishes a status transition event
func (ep *EventPublisher) PublishOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishVanAssigned publishes VanAssigned event
func (ep *EventPublisher) PublishVanAssigned(ctx context.Context, event *models.VanAssignedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishAgentAssigned publishes AgentAssigned event
func (ep *EventPublisher) PublishAgentAssigned(ctx context.Context, event *models.AgentAssignedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID, event)
}

// PublishRouteAssigned publishes RouteAssigned event
func (ep *EventPublisher) PublishRouteAssigned(ctx context.Context, event *models.RouteAssignedEvent) error {
	return ep.producer.PublishEvent(ctx, "agent-"+event.AgentID, event)
}

// EventHandler routes incoming dispatch events by type
type EventHandler struct {
	onOrderCreated  func(context.Context, *models.OrderCreatedEvent) error
	onOrderCanceled func(context.Context, *models.OrderCanceledEvent) error
	onVanAssigned   func(context.Context, *models.VanAssignedEvent) error
	onAgentAssigned func(context.Context, *models.AgentAssignedEvent) error
	onOrderStatus   func(context.Context, *models.OrderStatusEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnOrderCanceled registers a handler for OrderCanceled events
func (eh *EventHandler) OnOrderCanceled(handler func(context.Context, *models.OrderCanceledEvent) error) {
	eh.onOrderCanceled = handler
}

// OnVanAssigned registers a handler for VanAssigned events
func (eh *EventHandler) OnVanAssigned(handler func(context.Context, *models.VanAssignedEvent) error) {
	eh.onVanAssigned = handler
}

// OnAgentAssigned registers a handler for AgentAssigned events
func (eh *EventHandler) OnAgentAssigned(handler func(context.Context, *models.AgentAssignedEvent) error) {
	eh.onAgentAssigned = handler
}

// OnOrderStatus registers a handler for shipped/delivered status events
func (eh *EventHandler) OnOrderStatus(handler func(context.Context, *models.OrderStatusEvent) error) {
	eh.onOrderStatus = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	case models.EventTypeOrderCanceled:
		if eh.onOrderCanceled != nil {
			var event models.OrderCanceledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCanceled event: %w", err)
			}
			return eh.onOrderCanceled(ctx, &event)
		}

	case models.EventTypeVanAssigned:
		if eh.onVanAssigned != nil {
			var event models.VanAssignedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal VanAssigned event: %w", err)
			}
			return eh.onVanAssigned(ctx, &event)
		}

	case models.EventTypeAgentAssigned:
		if eh.onAgentAssigned != nil {
			var event models.AgentAssignedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal AgentAssigned event: %w", err)
			}
			return eh.onAgentAssigned(ctx, &event)
		}

	case models.EventTypeOrderShipped, models.EventTypeOrderDelivered:
		if eh.onOrderStatus != nil {
			var event models.OrderStatusEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal order status event: %w", err)
			}
			return eh.onOrderStatus(ctx, &event)
		}

	default:
		logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
