package worker

import (
	"context"
	"fmt"

	"dispatch-service/internal/broker"
	"dispatch-service/internal/models"
	"dispatch-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// notificationStore persists notification records.
type notificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// NotificationWorker consumes dispatch events and records a notification
// for each. Delivery is fire-and-forget for the dispatch pipeline: a
// failed write here never feeds back into order processing.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        notificationStore
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, store notificationStore) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnOrderCanceled(w.handleOrderCanceled)
	eventHandler.OnVanAssigned(w.handleVanAssigned)
	eventHandler.OnAgentAssigned(w.handleAgentAssigned)
	eventHandler.OnOrderStatus(w.handleOrderStatus)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	msg := fmt.Sprintf("Order %s created for store %s, total %d", event.OrderID, event.StoreID, event.TotalAmount)
	w.record(ctx, event.OrderID, event.EventType, msg)
	return nil
}

func (w *NotificationWorker) handleOrderCanceled(ctx context.Context, event *models.OrderCanceledEvent) error {
	msg := fmt.Sprintf("Order %s canceled: %s", event.OrderID, event.Reason)
	w.record(ctx, event.OrderID, event.EventType, msg)
	return nil
}

func (w *NotificationWorker) handleVanAssigned(ctx context.Context, event *models.VanAssignedEvent) error {
	msg := fmt.Sprintf("Order %s loaded onto vehicle %s", event.OrderID, event.VehicleID)
	w.record(ctx, event.OrderID, event.EventType, msg)
	return nil
}

func (w *NotificationWorker) handleAgentAssigned(ctx context.Context, event *models.AgentAssignedEvent) error {
	msg := fmt.Sprintf("Order %s assigned to agent %s", event.OrderID, event.AgentID)
	w.record(ctx, event.OrderID, event.EventType, msg)
	return nil
}

func (w *NotificationWorker) handleOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error {
	msg := fmt.Sprintf("Order %s is now %s", event.OrderID, event.Status)
	w.record(ctx, event.OrderID, event.EventType, msg)
	return nil
}

// record writes one notification. Failures are swallowed: the message
// is still committed, notifications are best-effort.
func (w *NotificationWorker) record(ctx context.Context, orderID, eventType, message string) {
	n := &models.Notification{
		NotificationID: uuid.New().String(),
		OrderID:        orderID,
		Type:           eventType,
		Message:        message,
	}
	if err := w.store.CreateNotification(ctx, n); err != nil {
		w.logger.Error("Failed to record notification",
			zap.String("order_id", orderID),
			zap.String("type", eventType),
			zap.Error(err))
		return
	}
	util.NotificationsRecordedTotal.Inc()
}
