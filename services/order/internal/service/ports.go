package service

import (
	"context"

	"github.com/Skotchmaster/agro_shop/services/order/internal/events"
	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/Skotchmaster/agro_shop/services/order/internal/repo"
	"github.com/Skotchmaster/agro_shop/services/order/internal/search"
	"github.com/google/uuid"
)

type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID, status *models.Status, offset, limit int) (int64, []repo.OrderSummary, error)
}

type Publisher interface {
	PublishOrderEvent(ctx context.Context, ev events.OrderEvent) error
}

type Indexer interface {
	IndexOrder(ctx context.Context, o *models.Order) error
	Search(ctx context.Context, query string, from, size int) (int64, []search.OrderDoc, error)
}

type IdempotencyStore interface {
	Reserve(ctx context.Context, userID uuid.UUID, key string) (uuid.UUID, bool, error)
	Complete(ctx context.Context, userID uuid.UUID, key string, orderID uuid.UUID) error
	Release(ctx context.Context, userID uuid.UUID, key string) error
}
