package events

import (
	"context"
	"testing"

	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	topic, key string
	event      any
}

func (w *recordingWriter) PublishEvent(_ context.Context, topic, key string, event any) error {
	w.topic, w.key, w.event = topic, key, event
	return nil
}

func TestKafkaPublisher_KeysByOrder(t *testing.T) {
	t.Parallel()

	order := &models.Order{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Status:      models.StatusCancelled,
		TotalAmount: decimal.RequireFromString("250"),
		Items: []models.OrderItem{
			{ProductID: uuid.New(), Quantity: 2},
			{ProductID: uuid.New(), Quantity: 1},
		},
	}
	w := &recordingWriter{}
	p := &KafkaPublisher{Writer: w, Topic: "order_events"}

	ev := NewOrderEvent(TypeOrderCancelled, order, models.StatusPending)
	require.NoError(t, p.PublishOrderEvent(context.Background(), ev))

	assert.Equal(t, "order_events", w.topic)
	assert.Equal(t, order.ID.String(), w.key)

	got, ok := w.event.(OrderEvent)
	require.True(t, ok)
	assert.Equal(t, TypeOrderCancelled, got.Type)
	assert.Equal(t, models.StatusPending, got.OldStatus)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.False(t, got.OccurredAt.IsZero())
}
