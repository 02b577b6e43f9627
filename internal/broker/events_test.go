package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHandlerRoutesOrderCreated(t *testing.T) {
	var handled *models.OrderCreatedEvent

	eh := NewEventHandler()
	eh.OnOrderCreated(func(_ context.Context, event *models.OrderCreatedEvent) error {
		handled = event
		return nil
	})

	event := models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:     "order-1",
		UserID:      "u1",
		TotalAmount: decimal.RequireFromString("25.50"),
		Items: []models.OrderItemData{
			{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = eh.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)

	require.NotNil(t, handled)
	assert.Equal(t, "order-1", handled.OrderID)
	assert.True(t, handled.TotalAmount.Equal(decimal.RequireFromString("25.50")))
	require.Len(t, handled.Items, 1)
	assert.Equal(t, 2, handled.Items[0].Quantity)
}

func TestEventHandlerIgnoresUnknownTypes(t *testing.T) {
	eh := NewEventHandler()
	eh.OnOrderCreated(func(context.Context, *models.OrderCreatedEvent) error {
		t.Fatal("handler must not run for unknown event types")
		return nil
	})

	payload, err := json.Marshal(models.BaseEvent{EventID: "evt-2", EventType: "SOMETHING_ELSE"})
	require.NoError(t, err)

	assert.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: payload}))
}

func TestEventHandlerRejectsMalformedPayload(t *testing.T) {
	eh := NewEventHandler()
	err := eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
