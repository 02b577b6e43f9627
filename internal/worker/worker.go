package worker

import (
	"context"
	"log"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// OrderWorker consumes OrderCreated events for downstream processing
// (fulfillment hand-off, confirmation mail). Events are deduplicated
// through the processed_events table, so redelivery is safe.
type OrderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewOrderWorker creates a new order worker
func NewOrderWorker(consumer *broker.Consumer, store *store.Store) *OrderWorker {
	w := &OrderWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *OrderWorker) Start(ctx context.Context) error {
	log.Println("Starting order worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderWorker) Stop() error {
	log.Println("Stopping order worker...")
	return w.consumer.Close()
}

func (w *OrderWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Debug("Skipping already processed event", zap.String("event_id", event.EventID))
		return nil
	}

	util.OrderEventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	w.logger.Info("Order ready for fulfillment",
		zap.String("order_id", event.OrderID),
		zap.String("customer_email", event.CustomerEmail),
		zap.Int("line_count", len(event.Items)),
		zap.String("total_amount", event.TotalAmount.String()))

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}
