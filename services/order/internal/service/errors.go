package service

import (
	"errors"
	"fmt"

	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/Skotchmaster/agro_shop/services/order/internal/repo"
	"github.com/google/uuid"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrPersistence       = errors.New("persistence failure")
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
)

type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found or not orderable", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrNotFound }

type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrConflict }

type InvalidTransitionError struct {
	OrderID uuid.UUID
	From    models.Status
	To      models.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrConflict }

// PersistenceError is any storage failure after a transaction began,
// including deadlocks and lock timeouts. It is never retried.
type PersistenceError struct {
	Op   string
	Kind string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// wrapTxError passes domain errors through and classifies everything else as
// a PersistenceError.
func wrapTxError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Kind: repo.Kind(err), Err: err}
}
