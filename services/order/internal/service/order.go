package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/agro_shop/pkg/logging"
	"github.com/Skotchmaster/agro_shop/services/order/internal/events"
	"github.com/Skotchmaster/agro_shop/services/order/internal/idempotency"
	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/Skotchmaster/agro_shop/services/order/internal/repo"
	"github.com/Skotchmaster/agro_shop/services/order/internal/transport"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const sideEffectTimeout = 5 * time.Second

// OrderService places, cancels and advances orders. Every mutation runs in
// one unit of work from Tx; Events, Index and Idem are optional.
type OrderService struct {
	Tx     repo.Transactor
	Repo   OrderReader
	Events Publisher
	Index  Indexer
	Idem   IdempotencyStore
}

// CreateOrder places an order for userID. replayed is true when idemKey was
// already bound to an order of the same user and that order is returned
// instead.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, idemKey string, req transport.CreateOrderRequest) (order *models.Order, replayed bool, err error) {
	lines, err := validateCreate(&req)
	if err != nil {
		return nil, false, err
	}

	l := logging.FromContext(ctx)

	reserved := false
	if idemKey != "" && s.Idem != nil {
		existing, ok, err := s.Idem.Reserve(ctx, userID, idemKey)
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			return nil, false, fmt.Errorf("%w: %s", ErrRequestInProgress, idemKey)
		case err != nil:
			l.Warn("idempotency_reserve_failed", "key", idemKey, "error", err)
		case ok:
			reserved = true
		default:
			prev, err := s.Repo.GetOrder(ctx, existing)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, wrapTxError("replay_order", err)
			}
			if err == nil && prev.UserID == userID {
				return prev, true, nil
			}
		}
	}

	order, err = s.placeOrder(ctx, userID, lines, req)
	if reserved {
		s.settleKey(ctx, userID, idemKey, order, err)
	}
	if err != nil {
		return nil, false, err
	}

	s.afterCommit(ctx, events.NewOrderEvent(events.TypeOrderCreated, order, ""), order)
	return order, false, nil
}

func (s *OrderService) placeOrder(ctx context.Context, userID uuid.UUID, lines []LineItem, req transport.CreateOrderRequest) (*models.Order, error) {
	var order *models.Order
	err := s.Tx.WithinTx(ctx, func(tx repo.Tx) error {
		priced, err := aggregate(ctx, tx.Products(), lines)
		if err != nil {
			return err
		}

		order = &models.Order{
			UserID:          userID,
			TotalAmount:     priced.total,
			Status:          models.StatusPending,
			ShippingAddress: req.ShippingAddress,
			Phone:           req.Phone,
			Notes:           req.Notes,
			Items:           priced.items,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		return decrementAll(ctx, tx.Products(), priced.locked)
	})
	if err != nil {
		return nil, wrapTxError("create_order", err)
	}
	return order, nil
}

func (s *OrderService) settleKey(ctx context.Context, userID uuid.UUID, key string, order *models.Order, placeErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	l := logging.FromContext(ctx)
	if placeErr != nil {
		if err := s.Idem.Release(ctx, userID, key); err != nil {
			l.Warn("idempotency_release_failed", "key", key, "error", err)
		}
		return
	}
	if err := s.Idem.Complete(ctx, userID, key, order.ID); err != nil {
		l.Warn("idempotency_complete_failed", "key", key, "order_id", order.ID, "error", err)
	}
}

// afterCommit publishes ev and reindexes order. Both are best effort: the
// order is already committed and failures are only logged.
func (s *OrderService) afterCommit(ctx context.Context, ev events.OrderEvent, order *models.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	l := logging.FromContext(ctx).With("order_id", order.ID, "event", ev.Type)
	if s.Events != nil {
		if err := s.Events.PublishOrderEvent(ctx, ev); err != nil {
			l.Warn("order_event_publish_failed", "error", err)
		}
	}
	if s.Index != nil {
		if err := s.Index.IndexOrder(ctx, order); err != nil {
			l.Warn("order_index_failed", "error", err)
		}
	}
}
