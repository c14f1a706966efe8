package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/agro_shop/services/order/internal/events"
	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/Skotchmaster/agro_shop/services/order/internal/repo"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CancelOrder cancels a pending order owned by userID and returns its stock.
// Orders of other users are reported as not found.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return s.compensate(ctx, "cancel_order", orderID, &userID)
}

// compensate restocks and cancels orderID in one unit of work. The order row
// stays locked from the status check to the flip, so concurrent cancels of
// one order restock once. A nil owner skips the ownership check.
func (s *OrderService) compensate(ctx context.Context, op string, orderID uuid.UUID, owner *uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.Tx.WithinTx(ctx, func(tx repo.Tx) error {
		o, err := tx.Orders().LockForUpdate(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if owner != nil && o.UserID != *owner {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		if o.Status != models.StatusPending || !models.CanTransition(o.Status, models.StatusCancelled) {
			return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: models.StatusCancelled}
		}

		items, err := tx.Orders().Items(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := restock(ctx, tx.Products(), items); err != nil {
			return err
		}
		if err := tx.Orders().UpdateStatus(ctx, o, models.StatusCancelled); err != nil {
			return err
		}
		o.Items = items
		order = o
		return nil
	})
	if err != nil {
		return nil, wrapTxError(op, err)
	}

	s.afterCommit(ctx, events.NewOrderEvent(events.TypeOrderCancelled, order, models.StatusPending), order)
	return order, nil
}

// restock locks every product of items in ascending id order, then returns
// each line's quantity.
func restock(ctx context.Context, products repo.ProductStore, items []models.OrderItem) error {
	qty := make(map[uuid.UUID]int, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		if _, ok := qty[it.ProductID]; !ok {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	repo.SortIDs(ids)

	for _, id := range ids {
		if _, err := products.LockForUpdate(ctx, id); err != nil {
			return fmt.Errorf("lock product %s: %w", id, err)
		}
	}
	for _, id := range ids {
		if err := products.Increment(ctx, id, qty[id]); err != nil {
			return fmt.Errorf("restock product %s: %w", id, err)
		}
	}
	return nil
}
