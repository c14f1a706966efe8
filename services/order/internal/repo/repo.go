package repo

import (
	"context"

	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRepo serves reads that run outside any unit of work.
type GormRepo struct {
	DB *gorm.DB
}

type OrderSummary struct {
	models.Order
	ItemCount int64
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{})
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, err
	}

	if err := r.fillProductNames(ctx, o.Items); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, status *models.Status, offset, limit int) (int64, []OrderSummary, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if status != nil {
			db = db.Where("status = ?", *status)
		}
		return db
	}

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	if err := r.DB.WithContext(ctx).Scopes(scope).Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	if len(orders) == 0 {
		return total, []OrderSummary{}, nil
	}

	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}

	var counts []struct {
		OrderID uuid.UUID
		N       int64
	}
	if err := r.DB.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("order_id, COUNT(*) AS n").
		Where("order_id IN ?", ids).
		Group("order_id").
		Scan(&counts).Error; err != nil {
		return 0, nil, err
	}
	byOrder := make(map[uuid.UUID]int64, len(counts))
	for _, c := range counts {
		byOrder[c.OrderID] = c.N
	}

	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderSummary{Order: o, ItemCount: byOrder[o.ID]})
	}
	return total, out, nil
}

func (r *GormRepo) fillProductNames(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}

	var products []models.Product
	if err := r.DB.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&products).Error; err != nil {
		return err
	}
	names := make(map[uuid.UUID]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	for i := range items {
		items[i].ProductName = names[items[i].ProductID]
	}
	return nil
}
