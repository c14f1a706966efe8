package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/Skotchmaster/agro_shop/services/order/internal/repo"
	"github.com/Skotchmaster/agro_shop/services/order/internal/search"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListOrders returns the caller's orders, newest first. An empty status
// lists every status.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, status string, offset, limit int) (int64, []repo.OrderSummary, error) {
	var filter *models.Status
	if status != "" {
		st, err := models.ParseStatus(status)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		filter = &st
	}
	return s.Repo.ListOrders(ctx, userID, filter, offset, limit)
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return o, nil
}

func (s *OrderService) SearchOrders(ctx context.Context, query string, offset, limit int) (int64, []search.OrderDoc, error) {
	query = strings.TrimSpace(query)
	if query == "" || s.Index == nil {
		return 0, []search.OrderDoc{}, nil
	}
	return s.Index.Search(ctx, query, offset, limit)
}
