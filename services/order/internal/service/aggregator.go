package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/Skotchmaster/agro_shop/services/order/internal/repo"
	"github.com/Skotchmaster/agro_shop/services/order/internal/transport"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LineItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// validateCreate normalizes and checks the request, then returns its lines
// with duplicate products merged in first-seen order.
func validateCreate(req *transport.CreateOrderRequest) ([]LineItem, error) {
	req.ShippingAddress = strings.TrimSpace(req.ShippingAddress)
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		if notes == "" {
			req.Notes = nil
		} else {
			req.Notes = &notes
		}
	}

	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}

	lines := make([]LineItem, 0, len(req.Items))
	pos := make(map[uuid.UUID]int, len(req.Items))
	for n, it := range req.Items {
		id, err := uuid.Parse(it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: items[%d].product_id is not a uuid", ErrValidation, n)
		}
		if i, ok := pos[id]; ok {
			if lines[i].Quantity > transport.MaxLineQuantity-it.Quantity {
				return nil, fmt.Errorf("%w: items for product %s exceed %d units", ErrValidation, id, transport.MaxLineQuantity)
			}
			lines[i].Quantity += it.Quantity
			continue
		}
		pos[id] = len(lines)
		lines = append(lines, LineItem{ProductID: id, Quantity: it.Quantity})
	}
	return lines, nil
}

type pricedLine struct {
	product  *models.Product
	quantity int
}

type pricedOrder struct {
	// lines in ascending product id order, the order they were locked in
	locked []pricedLine
	items  []models.OrderItem
	total  decimal.Decimal
}

// aggregate locks every product of lines in ascending id order, checks
// orderability and stock, and prices the order at the prices read under the
// lock. Nothing is written.
func aggregate(ctx context.Context, products repo.ProductStore, lines []LineItem) (*pricedOrder, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	repo.SortIDs(ids)

	byID := make(map[uuid.UUID]*models.Product, len(ids))
	for _, id := range ids {
		p, err := products.LockForUpdate(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		if err != nil {
			return nil, err
		}
		byID[id] = p
	}

	out := &pricedOrder{total: decimal.Zero}
	qty := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		p := byID[l.ProductID]
		if !p.Orderable() {
			return nil, &ProductNotFoundError{ProductID: l.ProductID}
		}
		if p.StockQuantity < l.Quantity {
			return nil, &InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity, Available: p.StockQuantity}
		}

		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		out.items = append(out.items, models.OrderItem{
			ProductID:   p.ID,
			Quantity:    l.Quantity,
			UnitPrice:   p.Price,
			TotalPrice:  lineTotal,
			ProductName: p.Name,
		})
		out.total = out.total.Add(lineTotal)
		qty[l.ProductID] = l.Quantity
	}

	for _, id := range ids {
		out.locked = append(out.locked, pricedLine{product: byID[id], quantity: qty[id]})
	}
	return out, nil
}

// decrementAll takes stock for every locked line. A guard miss or a product
// that stopped being orderable maps to the matching domain error.
func decrementAll(ctx context.Context, products repo.ProductStore, locked []pricedLine) error {
	for _, l := range locked {
		err := products.Decrement(ctx, l.product, l.quantity)
		if err == nil {
			continue
		}
		var shortage *repo.ShortageError
		switch {
		case errors.As(err, &shortage):
			return &InsufficientStockError{ProductID: shortage.ProductID, Requested: l.quantity, Available: shortage.Available}
		case errors.Is(err, gorm.ErrRecordNotFound):
			return &ProductNotFoundError{ProductID: l.product.ID}
		default:
			return err
		}
	}
	return nil
}
