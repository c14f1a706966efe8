package repo

import (
	"bytes"
	"context"
	"slices"

	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultCASAttempts = 3

// ProductStore is the inventory ledger as seen from inside a unit of work.
// Implementations differ only in how they keep the read-check-decrement
// sequence for one product exclusive.
type ProductStore interface {
	// LockForUpdate reads a product and claims it for the rest of the
	// transaction. Returns gorm.ErrRecordNotFound for a missing row.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error)
	// Decrement takes qty units from p and refreshes p in place. A guard
	// miss is reported as *ShortageError.
	Decrement(ctx context.Context, p *models.Product, qty int) error
	// Increment returns qty units to the product.
	Increment(ctx context.Context, id uuid.UUID, qty int) error
}

// SortIDs orders ids ascending so every transaction takes row locks in the
// same sequence.
func SortIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
}

// PessimisticProducts holds SELECT ... FOR UPDATE row locks until the
// transaction ends. Competing submissions for the same product queue on the
// lock.
type PessimisticProducts struct {
	DB *gorm.DB
}

func (r *PessimisticProducts) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func (r *PessimisticProducts) Decrement(ctx context.Context, p *models.Product, qty int) error {
	res := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", p.ID, qty).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		fresh, err := reload(ctx, r.DB, p.ID)
		if err != nil {
			return err
		}
		return &ShortageError{ProductID: p.ID, Available: fresh.StockQuantity}
	}
	p.StockQuantity -= qty
	p.Version++
	return nil
}

func (r *PessimisticProducts) Increment(ctx context.Context, id uuid.UUID, qty int) error {
	return increment(ctx, r.DB, id, qty)
}

// OptimisticProducts takes no lock on read. The decrement is a compare-and-
// swap on version; on a miss the row is re-read and re-checked inside the
// same transaction, up to MaxAttempts times.
type OptimisticProducts struct {
	DB          *gorm.DB
	MaxAttempts int
}

func (r *OptimisticProducts) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return reload(ctx, r.DB, id)
}

func (r *OptimisticProducts) Decrement(ctx context.Context, p *models.Product, qty int) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = defaultCASAttempts
	}

	for i := 0; i < attempts; i++ {
		if !p.Orderable() {
			return gorm.ErrRecordNotFound
		}
		if p.StockQuantity < qty {
			return &ShortageError{ProductID: p.ID, Available: p.StockQuantity}
		}

		res := r.DB.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND version = ? AND stock_quantity >= ?", p.ID, p.Version, qty).
			Updates(map[string]any{
				"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
				"version":        gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return classify(res.Error)
		}
		if res.RowsAffected == 1 {
			p.StockQuantity -= qty
			p.Version++
			return nil
		}

		fresh, err := reload(ctx, r.DB, p.ID)
		if err != nil {
			return err
		}
		*p = *fresh
	}
	return ErrContention
}

func (r *OptimisticProducts) Increment(ctx context.Context, id uuid.UUID, qty int) error {
	return increment(ctx, r.DB, id, qty)
}

func reload(ctx context.Context, db *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func increment(ctx context.Context, db *gorm.DB, id uuid.UUID, qty int) error {
	res := db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
