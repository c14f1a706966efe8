package events

import (
	"context"
	"time"

	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated       = "order_created"
	TypeOrderCancelled     = "order_cancelled"
	TypeOrderStatusChanged = "order_status_changed"
)

type OrderEvent struct {
	Type        string          `json:"type"`
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Status      models.Status   `json:"status"`
	OldStatus   models.Status   `json:"old_status,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []EventItem     `json:"items,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

type EventItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

func NewOrderEvent(typ string, o *models.Order, old models.Status) OrderEvent {
	ev := OrderEvent{
		Type:        typ,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		OldStatus:   old,
		TotalAmount: o.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, EventItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return ev
}

// Writer is the subset of mykafka.Producer the publisher needs.
type Writer interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// KafkaPublisher writes order events keyed by order id, so all events of
// one order stay on one partition.
type KafkaPublisher struct {
	Writer Writer
	Topic  string
}

func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, ev OrderEvent) error {
	return p.Writer.PublishEvent(ctx, p.Topic, ev.OrderID.String(), ev)
}

type Noop struct{}

func (Noop) PublishOrderEvent(context.Context, OrderEvent) error { return nil }
