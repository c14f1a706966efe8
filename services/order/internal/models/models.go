package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
	ProductDeleted  ProductStatus = "deleted"
)

// Product is the catalog row. This service only reads price and status and
// only writes stock_quantity and version.
type Product struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"                      json:"id"`
	Name          string          `gorm:"not null"                                  json:"name"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null"               json:"price"`
	StockQuantity int             `gorm:"not null;check:stock_quantity >= 0"        json:"stock_quantity"`
	Status        ProductStatus   `gorm:"type:varchar(16);not null;index"           json:"status"`
	Version       int64           `gorm:"not null;default:0"                        json:"version"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ProductActive
	}
	return nil
}

func (p *Product) Orderable() bool {
	return p.Status == ProductActive
}

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"                   json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;index;not null"               json:"user_id"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null"            json:"total_amount"`
	Status          Status          `gorm:"type:varchar(16);not null;index"        json:"status"`
	ShippingAddress string          `gorm:"not null"                               json:"shipping_address"`
	Phone           string          `gorm:"type:varchar(20);not null"              json:"phone"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `gorm:"index"                                  json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID"                     json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// ItemsTotal sums the line totals. It equals TotalAmount for every persisted
// order.
func (o *Order) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.TotalPrice)
	}
	return sum
}

// OrderItem is written once together with its order and never updated.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"                json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;index;not null"            json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index;not null"            json:"product_id"`
	Quantity    int             `gorm:"not null;check:quantity > 0"         json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"         json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null"         json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
	ProductName string          `gorm:"-"                                   json:"product_name,omitempty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
