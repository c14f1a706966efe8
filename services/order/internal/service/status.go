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

// UpdateStatus is the privileged transition. Moving to cancelled goes
// through the same compensation as an owner cancel.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, raw string) (old, updated models.Status, err error) {
	to, err := models.ParseStatus(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if to == models.StatusCancelled {
		if _, err := s.compensate(ctx, "update_status", orderID, nil); err != nil {
			return "", "", err
		}
		return models.StatusPending, models.StatusCancelled, nil
	}

	var order *models.Order
	err = s.Tx.WithinTx(ctx, func(tx repo.Tx) error {
		o, err := tx.Orders().LockForUpdate(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if !models.CanTransition(o.Status, to) {
			return &InvalidTransitionError{OrderID: o.ID, From: o.Status, To: to}
		}
		old = o.Status
		if err := tx.Orders().UpdateStatus(ctx, o, to); err != nil {
			return err
		}
		if o.Items, err = tx.Orders().Items(ctx, o.ID); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return "", "", wrapTxError("update_status", err)
	}

	s.afterCommit(ctx, events.NewOrderEvent(events.TypeOrderStatusChanged, order, old), order)
	return old, to, nil
}
