package repo

import (
	"context"

	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderStore writes orders inside a unit of work.
type OrderStore interface {
	// Create inserts the header and then every item of order.
	Create(ctx context.Context, order *models.Order) error
	LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Items(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	// UpdateStatus moves order to status, guarded on its current status.
	UpdateStatus(ctx context.Context, order *models.Order, status models.Status) error
}

type TxOrders struct {
	DB *gorm.DB
}

func (r *TxOrders) Create(ctx context.Context, order *models.Order) error {
	db := r.DB.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(order).Error; err != nil {
		return classify(err)
	}
	if len(order.Items) == 0 {
		return nil
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	if err := db.Create(&order.Items).Error; err != nil {
		return classify(err)
	}
	return nil
}

func (r *TxOrders) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, classify(err)
	}
	return &o, nil
}

func (r *TxOrders) Items(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.DB.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("product_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, classify(err)
	}
	return items, nil
}

func (r *TxOrders) UpdateStatus(ctx context.Context, order *models.Order, status models.Status) error {
	now := r.DB.NowFunc()
	res := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, order.Status).
		Updates(map[string]any{"status": status, "updated_at": now})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrContention
	}
	order.Status = status
	order.UpdatedAt = now
	return nil
}
