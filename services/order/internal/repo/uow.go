package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type LockStrategy string

const (
	LockPessimistic LockStrategy = "pessimistic"
	LockOptimistic  LockStrategy = "optimistic"
)

// Tx is a unit of work. Every store it hands out is bound to the same
// database transaction.
type Tx interface {
	Products() ProductStore
	Orders() OrderStore
}

type Transactor interface {
	// WithinTx runs fn in a transaction. The transaction commits only when fn
	// returns nil; any error, panic or early return rolls it back.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

type TxManager struct {
	DB          *gorm.DB
	Strategy    LockStrategy
	LockTimeout time.Duration
}

type gormTx struct {
	products ProductStore
	orders   OrderStore
}

func (t *gormTx) Products() ProductStore { return t.products }
func (t *gormTx) Orders() OrderStore     { return t.orders }

func (m *TxManager) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := m.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin tx: %w", classify(tx.Error))
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		tx.Rollback()
	}()

	if err := m.applyLockTimeout(tx); err != nil {
		return fmt.Errorf("set lock timeout: %w", classify(err))
	}

	if err := fn(m.bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit tx: %w", classify(err))
	}
	committed = true
	return nil
}

func (m *TxManager) bind(tx *gorm.DB) Tx {
	var products ProductStore
	switch m.Strategy {
	case LockOptimistic:
		products = &OptimisticProducts{DB: tx, MaxAttempts: defaultCASAttempts}
	default:
		products = &PessimisticProducts{DB: tx}
	}
	return &gormTx{
		products: products,
		orders:   &TxOrders{DB: tx},
	}
}

// applyLockTimeout bounds row lock waits on PostgreSQL. SQLite has no row
// locks and ignores it.
func (m *TxManager) applyLockTimeout(tx *gorm.DB) error {
	if m.LockTimeout <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.LockTimeout.Milliseconds())).Error
}
